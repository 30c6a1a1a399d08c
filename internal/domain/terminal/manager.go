package terminal

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/worktabs/internal/api/rest"
	"github.com/GriffinCanCode/worktabs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/worktabs/internal/storage/order"
	"github.com/GriffinCanCode/worktabs/internal/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultReconnectDelay is the wait before redialing a dropped session
	DefaultReconnectDelay = time.Second
	// DefaultDialTimeout bounds a single connection attempt
	DefaultDialTimeout = 10 * time.Second

	closeAllLimit = 4
)

// Options configures a Manager. API and Dialer are required.
type Options struct {
	API     API
	Dialer  ws.Dialer
	Store   *order.Store
	Logger  *zap.Logger
	Metrics *monitoring.Metrics

	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	DefaultRows    int
	DefaultCols    int

	OnAnomaly      AnomalyHandler
	OnStatusChange StatusHandler
}

type event struct {
	sessionID string
	status    Status
	anomaly   *Anomaly
}

// Manager owns the session registry, the per-project tab buckets and one
// transport connection per tracked session.
type Manager struct {
	api     API
	dialer  ws.Dialer
	store   *order.Store
	hub     *Hub
	logger  *zap.Logger
	metrics *monitoring.Metrics

	reconnectDelay time.Duration
	dialTimeout    time.Duration
	defaultRows    int
	defaultCols    int
	onAnomaly      AnomalyHandler
	onStatus       StatusHandler

	mu         sync.Mutex
	records    map[string]*record
	buckets    map[string][]*record
	active     map[string]string
	counts     map[string]int
	conns      map[string]*connection
	timers     map[string]*reconnectTimer
	loadTokens map[string]uint64
	loadSeq    uint64
	closing    []ws.Conn
	events     []event
	closed     bool

	// serializes hook delivery
	notifyMu sync.Mutex
	wg       sync.WaitGroup
}

// NewManager creates a manager. Without a Store, tab order lives in memory
// only.
func NewManager(opts Options) (*Manager, error) {
	if opts.API == nil {
		return nil, errors.New("terminal manager requires an API client")
	}
	if opts.Dialer == nil {
		return nil, errors.New("terminal manager requires a dialer")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = order.Open(order.NewMemoryKV(), order.DefaultKey, logger)
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	return &Manager{
		api:            opts.API,
		dialer:         opts.Dialer,
		store:          store,
		hub:            NewHub(logger),
		logger:         logger,
		metrics:        opts.Metrics,
		reconnectDelay: delay,
		dialTimeout:    dialTimeout,
		defaultRows:    opts.DefaultRows,
		defaultCols:    opts.DefaultCols,
		onAnomaly:      opts.OnAnomaly,
		onStatus:       opts.OnStatusChange,
		records:        make(map[string]*record),
		buckets:        make(map[string][]*record),
		active:         make(map[string]string),
		counts:         make(map[string]int),
		conns:          make(map[string]*connection),
		timers:         make(map[string]*reconnectTimer),
		loadTokens:     make(map[string]uint64),
	}, nil
}

// AttachOrUpdate merges s into the registry. A new session is connected
// and joins its project's bucket; a tracked one keeps its project. It
// reports false when the session could not be placed in any project.
func (m *Manager) AttachOrUpdate(s rest.Session, opts AttachOptions) (Tab, bool) {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return Tab{}, false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Tab{}, false
	}
	rec := m.attachLocked(s, opts)
	var tab Tab
	if rec != nil {
		tab = rec.tab
	}
	m.mu.Unlock()
	m.settle()
	return tab, rec != nil
}

// Remove drops a session and closes its transport
func (m *Manager) Remove(sessionID string) bool {
	m.mu.Lock()
	removed := m.removeLocked(sessionID)
	m.mu.Unlock()
	m.settle()
	return removed
}

// Reconcile makes the project's bucket match sessions, the authoritative
// server list.
func (m *Manager) Reconcile(projectID string, sessions []rest.Session) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return invalid("projectId", "must not be empty")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.reconcileLocked(projectID, sessions)
	m.mu.Unlock()
	m.settle()
	return nil
}

// ListSessions returns the project's tabs in tab order
func (m *Manager) ListSessions(projectID string) []Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.buckets[projectID]
	tabs := make([]Tab, len(bucket))
	for i, rec := range bucket {
		tabs[i] = rec.tab
	}
	return tabs
}

// ActiveTabID returns the project's active tab, repairing a stale pointer.
// It is empty when the project has no tabs.
func (m *Manager) ActiveTabID(projectID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureActiveLocked(projectID)
}

// SetActiveTab points the project's active tab at sessionID. Ids that are
// not in the project's bucket are ignored.
func (m *Manager) SetActiveTab(projectID, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.buckets[projectID] {
		if rec.tab.ID == sessionID {
			m.active[projectID] = sessionID
			return true
		}
	}
	return false
}

// PrepareProject creates the project's bucket if needed and returns its
// active tab.
func (m *Manager) PrepareProject(projectID string) string {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureBucketLocked(projectID)
	return m.ensureActiveLocked(projectID)
}

// LoadSessions fetches the project's sessions and reconciles the bucket.
// When loads overlap only the most recently started one is applied.
func (m *Manager) LoadSessions(ctx context.Context, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return invalid("projectId", "must not be empty")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.loadSeq++
	token := m.loadSeq
	m.loadTokens[projectID] = token
	m.mu.Unlock()

	sessions, err := m.api.ListSessions(ctx, projectID)
	if err != nil {
		m.logger.Error("Failed to load terminal sessions",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		return &RequestError{Op: "list sessions", Err: err}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.loadTokens[projectID] != token {
		m.mu.Unlock()
		m.logger.Debug("Discarded stale session list", zap.String("project_id", projectID))
		return nil
	}
	m.reconcileLocked(projectID, sessions)
	m.counts[projectID] = len(sessions)
	m.mu.Unlock()
	m.settle()
	return nil
}

// CreateSession opens a new session on the server, then tracks and
// activates it.
func (m *Manager) CreateSession(ctx context.Context, projectID string, opts CreateOptions) (Tab, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return Tab{}, invalid("projectId", "must not be empty")
	}
	worktreeID := strings.TrimSpace(opts.WorktreeID)
	if worktreeID == "" {
		return Tab{}, invalid("worktreeId", "must not be empty")
	}
	if m.isClosed() {
		return Tab{}, ErrManagerClosed
	}

	req := rest.CreateRequest{
		WorkingDir: opts.WorkingDir,
		Title:      opts.Title,
		Rows:       opts.Rows,
		Cols:       opts.Cols,
	}
	if req.Rows <= 0 {
		req.Rows = m.defaultRows
	}
	if req.Cols <= 0 {
		req.Cols = m.defaultCols
	}

	s, err := m.api.CreateSession(ctx, projectID, worktreeID, req)
	if err != nil {
		return Tab{}, &RequestError{Op: "create session", Err: err}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Tab{}, ErrManagerClosed
	}
	_, existed := m.records[s.ID]
	rec := m.attachLocked(s, AttachOptions{Activate: true, ProjectHint: projectID})
	if rec == nil {
		m.mu.Unlock()
		m.settle()
		return Tab{}, fmt.Errorf("create session: server returned an unplaceable session %q", s.ID)
	}
	if !existed {
		m.counts[rec.tab.ProjectID]++
	}
	tab := rec.tab
	m.mu.Unlock()
	m.settle()

	m.logger.Info("Created terminal session",
		zap.String("session_id", tab.ID),
		zap.String("project_id", tab.ProjectID),
	)
	return tab, nil
}

// RenameSession sets a session's title. It reports false when the server
// returned no session and nothing changed.
func (m *Manager) RenameSession(ctx context.Context, projectID, sessionID, title string) (Tab, bool, error) {
	projectID = strings.TrimSpace(projectID)
	sessionID = strings.TrimSpace(sessionID)
	title = strings.TrimSpace(title)
	switch {
	case projectID == "":
		return Tab{}, false, invalid("projectId", "must not be empty")
	case sessionID == "":
		return Tab{}, false, invalid("sessionId", "must not be empty")
	case title == "":
		return Tab{}, false, invalid("title", "must not be empty")
	}
	if m.isClosed() {
		return Tab{}, false, ErrManagerClosed
	}

	s, ok, err := m.api.RenameSession(ctx, projectID, sessionID, title)
	if err != nil {
		return Tab{}, false, &RequestError{Op: "rename session", Err: err}
	}
	if !ok {
		tab, _ := m.Session(sessionID)
		return tab, false, nil
	}

	tab, placed := m.AttachOrUpdate(s, AttachOptions{ProjectHint: projectID})
	return tab, placed, nil
}

// CloseSession closes the session on the server and then forgets it
// locally. A failed server call leaves local state untouched.
func (m *Manager) CloseSession(ctx context.Context, projectID, sessionID string) error {
	projectID = strings.TrimSpace(projectID)
	sessionID = strings.TrimSpace(sessionID)
	if projectID == "" {
		return invalid("projectId", "must not be empty")
	}
	if sessionID == "" {
		return invalid("sessionId", "must not be empty")
	}
	if m.isClosed() {
		return ErrManagerClosed
	}

	if err := m.api.CloseSession(ctx, projectID, sessionID); err != nil {
		return &RequestError{Op: "close session", Err: err}
	}
	m.Remove(sessionID)
	return nil
}

// CloseAllSessions closes every tab of the project. Every close is
// attempted; the failures are joined.
func (m *Manager) CloseAllSessions(ctx context.Context, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return invalid("projectId", "must not be empty")
	}

	tabs := m.ListSessions(projectID)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(closeAllLimit)
	for _, tab := range tabs {
		g.Go(func() error {
			if err := m.CloseSession(ctx, projectID, tab.ID); err != nil {
				m.logger.Warn("Failed to close terminal session",
					zap.String("session_id", tab.ID),
					zap.Error(err),
				)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// ReorderTabs moves the tab at from to position to, clamped into range.
// It reports whether the order changed.
func (m *Manager) ReorderTabs(projectID string, from, to int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.buckets[projectID]
	if from == to || len(bucket) < 2 || from < 0 || from >= len(bucket) {
		return false
	}
	to = min(max(to, 0), len(bucket)-1)
	if from == to {
		return false
	}

	rec := bucket[from]
	bucket = slices.Delete(bucket, from, from+1)
	bucket = slices.Insert(bucket, to, rec)
	m.buckets[projectID] = bucket
	m.captureLocked(projectID)
	return true
}

// Send writes msg to the session's transport. Strings and byte slices are
// sent verbatim, anything else is JSON encoded. Nothing is queued: when the
// transport is not open the message is dropped and Send returns false.
func (m *Manager) Send(sessionID string, msg any) bool {
	m.mu.Lock()
	c := m.conns[sessionID]
	if c == nil || !c.open || c.conn == nil {
		m.mu.Unlock()
		return false
	}
	conn := c.conn
	m.mu.Unlock()

	data, err := encodeOutbound(msg)
	if err != nil {
		m.logger.Debug("Failed to encode outbound frame", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		m.logger.Debug("Failed to send frame", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}

	kind := "raw"
	if f, ok := msg.(ws.Frame); ok {
		kind = f.Type
	}
	m.metrics.RecordFrame("out", kind)
	return true
}

func encodeOutbound(msg any) ([]byte, error) {
	if s, ok := msg.(string); ok {
		return []byte(s), nil
	}
	return ws.EncodeFrame(msg)
}

// Subscribe registers fn for every inbound frame of sessionID
func (m *Manager) Subscribe(sessionID string, fn Listener) func() {
	return m.hub.Subscribe(sessionID, fn)
}

// LoadTerminalCounts replaces the cached per-project session counts with
// the server's. On failure the cache is kept and an empty map is returned.
func (m *Manager) LoadTerminalCounts(ctx context.Context) (map[string]int, error) {
	counts, err := m.api.TerminalCounts(ctx)
	if err != nil {
		m.logger.Error("Failed to load terminal counts", zap.Error(err))
		return map[string]int{}, &RequestError{Op: "terminal counts", Err: err}
	}

	m.mu.Lock()
	m.counts = make(map[string]int, len(counts))
	maps.Copy(m.counts, counts)
	m.mu.Unlock()
	return maps.Clone(counts), nil
}

// TerminalCounts returns a copy of the cached counts
func (m *Manager) TerminalCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.counts)
}

// TerminalCount returns the number of tabs tracked for a project
func (m *Manager) TerminalCount(projectID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets[projectID])
}

// Disconnect closes the session's transport without reconnecting. With
// remove the session is also dropped from the registry.
func (m *Manager) Disconnect(sessionID string, remove bool) bool {
	m.mu.Lock()
	var ok bool
	if remove {
		ok = m.removeLocked(sessionID)
	} else if _, ok = m.records[sessionID]; ok {
		m.teardownLocked(sessionID)
	}
	m.mu.Unlock()
	m.settle()
	return ok
}

// Reconnect dials a tracked session that has no live or pending
// connection, for example after Disconnect or an exit.
func (m *Manager) Reconnect(sessionID string) bool {
	m.mu.Lock()
	rec := m.records[sessionID]
	if rec == nil || m.closed || m.conns[sessionID] != nil {
		m.mu.Unlock()
		return false
	}
	if rt, ok := m.timers[sessionID]; ok {
		rt.timer.Stop()
		delete(m.timers, sessionID)
	}
	m.connectLocked(rec)
	m.mu.Unlock()
	m.settle()
	return true
}

// Status returns a session's connection status
func (m *Manager) Status(sessionID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return "", false
	}
	return rec.tab.Status, true
}

// Session returns a snapshot of a tracked session
func (m *Manager) Session(sessionID string) (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return Tab{}, false
	}
	return rec.tab, true
}

// Projects returns the projects with a bucket, sorted
func (m *Manager) Projects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.buckets))
}

// Close tears down every connection and pending reconnect and waits for
// the reader goroutines. It must not be called from a listener or hook.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.closed = true
	ids := slices.Collect(maps.Keys(m.conns))
	for id := range m.timers {
		ids = append(ids, id)
	}
	for _, id := range ids {
		m.teardownLocked(id)
	}
	m.mu.Unlock()

	m.closePending()
	m.wg.Wait()
	m.flush()
	m.logger.Debug("Terminal manager closed", zap.Int("connections", len(ids)))
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// settle runs the side effects queued while the lock was held
func (m *Manager) settle() {
	m.closePending()
	m.flush()
}

// flush delivers queued status and anomaly events in order. Hooks run
// outside m.mu; a hook that calls back into the manager has its own events
// delivered by the outer loop.
func (m *Manager) flush() {
	for {
		m.mu.Lock()
		pending := len(m.events) > 0
		m.mu.Unlock()
		if !pending || !m.notifyMu.TryLock() {
			return
		}

		m.mu.Lock()
		events := m.events
		m.events = nil
		m.mu.Unlock()

		for _, e := range events {
			m.dispatch(e)
		}
		m.notifyMu.Unlock()
	}
}

func (m *Manager) dispatch(e event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Terminal hook panicked", zap.Any("panic", r))
		}
	}()

	switch {
	case e.anomaly != nil:
		if m.onAnomaly != nil {
			m.onAnomaly(*e.anomaly)
		}
	case m.onStatus != nil:
		m.onStatus(e.sessionID, e.status)
	}
}
