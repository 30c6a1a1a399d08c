package terminal

import (
	"context"
	"time"

	"github.com/GriffinCanCode/worktabs/internal/ws"
	"go.uber.org/zap"
)

// connection is one transport attempt for a session. Its reader goroutine
// is the only producer of transport events for it, so events of one
// connection are applied in the order the transport delivers them.
type connection struct {
	sessionID string
	url       string
	cancel    context.CancelFunc

	// guarded by Manager.mu
	conn   ws.Conn
	open   bool
	manual bool // set right before a caller-initiated close
	done   bool // close already handled
}

type reconnectTimer struct {
	timer *time.Timer
}

// connectLocked starts a new connection for rec. Callers hold m.mu.
func (m *Manager) connectLocked(rec *record) {
	if m.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		sessionID: rec.tab.ID,
		url:       m.api.WebSocketURL(rec.tab.Session),
		cancel:    cancel,
	}
	m.conns[c.sessionID] = c
	m.setStatusLocked(c.sessionID, StatusConnecting)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.run(ctx, c)
	}()
}

func (m *Manager) run(ctx context.Context, c *connection) {
	dialCtx, cancelDial := context.WithTimeout(ctx, m.dialTimeout)
	conn, err := m.dialer.Dial(dialCtx, c.url)
	cancelDial()
	if err != nil {
		m.logger.Debug("Terminal dial failed", zap.String("session_id", c.sessionID), zap.Error(err))
		m.handleError(c)
		m.handleClose(c)
		return
	}

	if !m.handleOpen(c, conn) {
		conn.Close()
		m.handleClose(c)
		return
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !ws.IsNormalClose(err) {
				m.logger.Debug("Terminal transport closed", zap.String("session_id", c.sessionID), zap.Error(err))
			}
			conn.Close()
			m.handleClose(c)
			return
		}
		m.handleMessage(c, data)
	}
}

// handleOpen sends the resize frame with the session's current geometry
// and marks the session ready. It returns false if the connection was
// superseded or closed by the caller while dialing.
func (m *Manager) handleOpen(c *connection, conn ws.Conn) bool {
	m.mu.Lock()
	if m.conns[c.sessionID] != c || c.manual {
		m.mu.Unlock()
		return false
	}
	c.conn = conn
	var resize ws.ResizeFrame
	if rec, ok := m.records[c.sessionID]; ok {
		resize = ws.Resize(rec.tab.Cols, rec.tab.Rows)
	}
	m.mu.Unlock()

	data, err := ws.EncodeFrame(resize)
	if err == nil {
		err = conn.WriteMessage(data)
	}
	if err != nil {
		m.logger.Debug("Failed to send resize", zap.String("session_id", c.sessionID), zap.Error(err))
	} else {
		m.metrics.RecordFrame("out", ws.TypeResize)
	}

	m.mu.Lock()
	if m.conns[c.sessionID] != c || c.manual {
		m.mu.Unlock()
		return false
	}
	c.open = true
	m.setStatusLocked(c.sessionID, StatusReady)
	m.mu.Unlock()
	m.flush()
	return true
}

func (m *Manager) handleMessage(c *connection, data []byte) {
	frame, err := ws.DecodeFrame(data)
	if err != nil {
		m.metrics.IncMalformedFrames()
		m.logger.Debug("Dropped malformed terminal frame", zap.String("session_id", c.sessionID), zap.Error(err))
		return
	}

	m.mu.Lock()
	if m.conns[c.sessionID] != c {
		m.mu.Unlock()
		return
	}
	switch frame.Type {
	case ws.TypeReady:
		m.setStatusLocked(c.sessionID, StatusReady)
	case ws.TypeExit:
		m.setStatusLocked(c.sessionID, StatusClosed)
	case ws.TypeError:
		m.setStatusLocked(c.sessionID, StatusError)
	}
	m.mu.Unlock()
	m.flush()

	m.metrics.RecordFrame("in", frame.Type)
	m.hub.Publish(c.sessionID, frame)
}

func (m *Manager) handleError(c *connection) {
	m.mu.Lock()
	if m.conns[c.sessionID] == c && !c.manual {
		m.setStatusLocked(c.sessionID, StatusError)
	}
	m.mu.Unlock()
	m.flush()
}

// handleClose applies the close transition once per connection
func (m *Manager) handleClose(c *connection) {
	m.mu.Lock()
	if c.done {
		m.mu.Unlock()
		return
	}
	c.done = true
	c.open = false

	current, tracked := m.conns[c.sessionID]
	if current == c {
		delete(m.conns, c.sessionID)
	}

	switch {
	case c.manual:
		if !tracked || current == c {
			m.setStatusLocked(c.sessionID, StatusClosed)
		}
	case tracked && current != c:
		// superseded by a newer connection
	case m.records[c.sessionID] != nil && !m.closed:
		m.setStatusLocked(c.sessionID, StatusConnecting)
		m.scheduleReconnectLocked(c.sessionID)
	default:
		m.setStatusLocked(c.sessionID, StatusClosed)
	}
	m.mu.Unlock()
	m.flush()
}

// scheduleReconnectLocked arms the single reconnect timer for id
func (m *Manager) scheduleReconnectLocked(id string) {
	if _, pending := m.timers[id]; pending {
		return
	}
	if m.records[id] == nil {
		return
	}

	rt := &reconnectTimer{}
	rt.timer = time.AfterFunc(m.reconnectDelay, func() { m.fireReconnect(id, rt) })
	m.timers[id] = rt
}

func (m *Manager) fireReconnect(id string, rt *reconnectTimer) {
	m.mu.Lock()
	if m.timers[id] != rt {
		m.mu.Unlock()
		return
	}
	delete(m.timers, id)

	rec := m.records[id]
	if rec == nil || m.closed || m.conns[id] != nil {
		m.mu.Unlock()
		return
	}
	m.metrics.IncReconnects()
	m.logger.Info("Reconnecting terminal session", zap.String("session_id", id))
	m.connectLocked(rec)
	m.mu.Unlock()
	m.flush()
}

// teardownLocked cancels the pending timer and marks the live connection
// as caller-closed. The socket itself is closed by closePending outside the
// lock. A session waiting only on a reconnect timer is closed directly.
func (m *Manager) teardownLocked(id string) {
	rt, pending := m.timers[id]
	if pending {
		rt.timer.Stop()
		delete(m.timers, id)
	}

	c, ok := m.conns[id]
	if !ok {
		if pending {
			m.setStatusLocked(id, StatusClosed)
		}
		return
	}
	c.manual = true
	c.cancel()
	delete(m.conns, id)
	if c.conn != nil {
		m.closing = append(m.closing, c.conn)
	}
}

// closePending closes sockets queued by teardownLocked
func (m *Manager) closePending() {
	m.mu.Lock()
	conns := m.closing
	m.closing = nil
	m.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			m.logger.Debug("Error closing terminal transport", zap.Error(err))
		}
	}
}
