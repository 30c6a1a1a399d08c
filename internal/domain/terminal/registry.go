package terminal

import (
	"slices"
	"strings"

	"github.com/GriffinCanCode/worktabs/internal/api/rest"
	"go.uber.org/zap"
)

type record struct {
	tab Tab
}

// Everything in this file runs with m.mu held.

// attachLocked merges s into a tracked record or inserts a new one and
// starts its connection. It returns nil when the session was skipped.
func (m *Manager) attachLocked(s rest.Session, opts AttachOptions) *record {
	existing, exists := m.records[s.ID]
	tracked := ""
	if exists {
		tracked = existing.tab.ProjectID
	}

	project, anomaly := resolveProject(tracked, exists, s.ProjectID, opts.ProjectHint)
	if anomaly != "" {
		a := Anomaly{Kind: anomaly, SessionID: s.ID, PayloadProject: strings.TrimSpace(s.ProjectID)}
		if exists {
			a.TrackedProject = tracked
		} else {
			a.TrackedProject = strings.TrimSpace(opts.ProjectHint)
		}
		m.reportAnomalyLocked(a)
	}

	if exists {
		s.ProjectID = tracked
		existing.tab.Session = s
		if opts.Activate {
			m.active[tracked] = s.ID
		}
		return existing
	}
	if project == "" {
		return nil
	}

	s.ProjectID = project
	rec := &record{tab: Tab{Session: s, Status: StatusConnecting}}
	m.records[s.ID] = rec
	m.buckets[project] = append(m.buckets[project], rec)
	m.captureLocked(project)

	if opts.Activate || !m.activeValidLocked(project) {
		m.active[project] = s.ID
	}
	m.metrics.SetSessionsTracked(project, len(m.buckets[project]))
	m.logger.Debug("Attached terminal session",
		zap.String("session_id", s.ID),
		zap.String("project_id", project),
	)

	m.connectLocked(rec)
	return rec
}

// removeLocked drops a session from its bucket and tears down its
// transport. It reports whether a record was removed.
func (m *Manager) removeLocked(id string) bool {
	m.teardownLocked(id)

	rec, ok := m.records[id]
	if !ok {
		return false
	}
	project := rec.tab.ProjectID
	delete(m.records, id)

	bucket := m.buckets[project]
	if i := slices.Index(bucket, rec); i >= 0 {
		bucket = slices.Delete(bucket, i, i+1)
		m.counts[project] = max(0, m.counts[project]-1)
	}
	m.buckets[project] = bucket
	m.captureLocked(project)
	if len(bucket) == 0 {
		delete(m.buckets, project)
	}

	if m.active[project] == id {
		if len(bucket) > 0 {
			m.active[project] = bucket[0].tab.ID
		} else {
			delete(m.active, project)
		}
	}
	m.metrics.SetSessionsTracked(project, len(bucket))
	m.logger.Debug("Removed terminal session",
		zap.String("session_id", id),
		zap.String("project_id", project),
	)
	return true
}

// reconcileLocked makes the bucket for project match the server's list
func (m *Manager) reconcileLocked(project string, sessions []rest.Session) {
	m.ensureBucketLocked(project)

	valid := make([]rest.Session, 0, len(sessions))
	incoming := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			continue
		}
		valid = append(valid, s)
		incoming[s.ID] = struct{}{}
	}
	for _, rec := range slices.Clone(m.buckets[project]) {
		if _, ok := incoming[rec.tab.ID]; !ok {
			m.removeLocked(rec.tab.ID)
		}
	}

	for _, s := range sortSessions(m.store.Order(project), valid) {
		m.attachLocked(s, AttachOptions{ProjectHint: project})
	}

	m.ensureActiveLocked(project)
	m.captureLocked(project)
}

func (m *Manager) ensureBucketLocked(project string) {
	if _, ok := m.buckets[project]; !ok {
		m.buckets[project] = nil
	}
}

func (m *Manager) activeValidLocked(project string) bool {
	current := m.active[project]
	if current == "" {
		return false
	}
	return slices.ContainsFunc(m.buckets[project], func(r *record) bool { return r.tab.ID == current })
}

// ensureActiveLocked points the active tab at a bucket member, falling back
// to the first one, or clears it for an empty bucket.
func (m *Manager) ensureActiveLocked(project string) string {
	bucket := m.buckets[project]
	if len(bucket) == 0 {
		delete(m.active, project)
		return ""
	}
	if !m.activeValidLocked(project) {
		m.active[project] = bucket[0].tab.ID
	}
	return m.active[project]
}

func (m *Manager) captureLocked(project string) {
	bucket := m.buckets[project]
	ids := make([]string, len(bucket))
	for i, r := range bucket {
		ids[i] = r.tab.ID
	}
	m.store.Capture(project, ids)
}

func (m *Manager) setStatusLocked(id string, status Status) {
	rec, ok := m.records[id]
	if !ok || rec.tab.Status == status {
		return
	}
	rec.tab.Status = status
	m.metrics.RecordStatus(string(status))
	m.events = append(m.events, event{sessionID: id, status: status})
}

func (m *Manager) reportAnomalyLocked(a Anomaly) {
	m.logger.Warn("Terminal session anomaly",
		zap.String("kind", string(a.Kind)),
		zap.String("session_id", a.SessionID),
		zap.String("payload_project", a.PayloadProject),
		zap.String("tracked_project", a.TrackedProject),
	)
	m.metrics.RecordAnomaly(string(a.Kind))
	anomaly := a
	m.events = append(m.events, event{anomaly: &anomaly})
}

// sortSessions orders sessions by their position in stored, then by
// createdAt, then by id. Sessions absent from stored sort after the rest.
func sortSessions(stored []string, sessions []rest.Session) []rest.Session {
	ordered := slices.Clone(sessions)
	index := make(map[string]int, len(stored))
	for i, id := range stored {
		if _, dup := index[id]; id != "" && !dup {
			index[id] = i
		}
	}

	fallback := func(a, b rest.Session) int {
		if c := strings.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	}

	slices.SortStableFunc(ordered, func(a, b rest.Session) int {
		ia, okA := index[a.ID]
		ib, okB := index[b.ID]
		switch {
		case okA && okB:
			if ia != ib {
				return ia - ib
			}
			return fallback(a, b)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return fallback(a, b)
		}
	})
	return ordered
}
