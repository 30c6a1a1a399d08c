package order

import (
	"slices"
	"strings"
	"sync"

	"github.com/GriffinCanCode/worktabs/internal/infrastructure/monitoring"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// DefaultKey is the storage key of the tab order record
const DefaultKey = "kanban-terminal-tab-order"

// Store caches the persisted project -> tab order record. The record is
// read once by Open; every later read is served from memory.
type Store struct {
	kv      KV
	key     string
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	orders map[string][]string
}

// Open loads the record stored under key. A missing, unreadable or
// malformed record yields an empty store.
func Open(kv KV, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		kv:     kv,
		key:    key,
		logger: logger,
		orders: make(map[string][]string),
	}
	s.load()
	return s
}

// WithMetrics records writes into m
func (s *Store) WithMetrics(m *monitoring.Metrics) *Store {
	s.metrics = m
	return s
}

func (s *Store) load() {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		s.logger.Warn("Failed to read stored tab order", zap.Error(err))
		return
	}
	if !ok || len(raw) == 0 {
		return
	}

	var parsed map[string]any
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		s.logger.Warn("Failed to parse stored tab order", zap.Error(err))
		return
	}
	s.orders = normalize(parsed)
}

// normalize keeps array values only, trims ids and drops empty ids,
// empty projects and projects whose order ends up empty.
func normalize(parsed map[string]any) map[string][]string {
	result := make(map[string][]string, len(parsed))
	for project, value := range parsed {
		list, ok := value.([]any)
		if project == "" || !ok {
			continue
		}
		ids := make([]string, 0, len(list))
		for _, v := range list {
			str, _ := v.(string)
			if id := strings.TrimSpace(str); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			result[project] = ids
		}
	}
	return result
}

// Order returns a copy of the stored order for project
func (s *Store) Order(project string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.orders[project])
}

// Projects returns the projects that have a stored order
func (s *Store) Projects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects := make([]string, 0, len(s.orders))
	for p := range s.orders {
		projects = append(projects, p)
	}
	slices.Sort(projects)
	return projects
}

// Capture records ids as the order for project and persists the record.
// An empty order removes the project. Nothing is written when the order is
// unchanged. It reports whether the cached record changed.
func (s *Store) Capture(project string, ids []string) bool {
	if project == "" {
		return false
	}

	next := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			next = append(next, id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(next) == 0 {
		if _, ok := s.orders[project]; !ok {
			return false
		}
		delete(s.orders, project)
		s.persist()
		return true
	}

	if slices.Equal(s.orders[project], next) {
		return false
	}
	s.orders[project] = next
	s.persist()
	return true
}

// persist writes the whole record; an empty record deletes the key. Write
// failures are logged and the cache is kept. Callers hold the lock.
func (s *Store) persist() {
	if len(s.orders) == 0 {
		if err := s.kv.Delete(s.key); err != nil {
			s.logger.Warn("Failed to delete stored tab order", zap.Error(err))
			return
		}
		s.metrics.RecordOrderWrite("delete")
		return
	}

	data, err := sonic.ConfigStd.Marshal(s.orders)
	if err != nil {
		s.logger.Warn("Failed to encode tab order", zap.Error(err))
		return
	}
	if err := s.kv.Set(s.key, data); err != nil {
		s.logger.Warn("Failed to persist tab order", zap.Error(err))
		return
	}
	s.metrics.RecordOrderWrite("set")
}
