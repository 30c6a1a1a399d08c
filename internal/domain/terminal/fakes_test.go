package terminal

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/worktabs/internal/api/rest"
	"github.com/GriffinCanCode/worktabs/internal/storage/order"
	"github.com/GriffinCanCode/worktabs/internal/ws"
	"github.com/stretchr/testify/mock"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListSessions(ctx context.Context, projectID string) ([]rest.Session, error) {
	args := m.Called(ctx, projectID)
	sessions, _ := args.Get(0).([]rest.Session)
	return sessions, args.Error(1)
}

func (m *mockAPI) CreateSession(ctx context.Context, projectID, worktreeID string, req rest.CreateRequest) (rest.Session, error) {
	args := m.Called(ctx, projectID, worktreeID, req)
	return args.Get(0).(rest.Session), args.Error(1)
}

func (m *mockAPI) RenameSession(ctx context.Context, projectID, sessionID, title string) (rest.Session, bool, error) {
	args := m.Called(ctx, projectID, sessionID, title)
	return args.Get(0).(rest.Session), args.Bool(1), args.Error(2)
}

func (m *mockAPI) CloseSession(ctx context.Context, projectID, sessionID string) error {
	return m.Called(ctx, projectID, sessionID).Error(0)
}

func (m *mockAPI) TerminalCounts(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[string]int)
	return counts, args.Error(1)
}

func (m *mockAPI) WebSocketURL(s rest.Session) string {
	return "ws://terminal.test/" + s.ID
}

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	url  string
	in   chan []byte
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn(url string) *fakeConn {
	return &fakeConn{url: url, in: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.done:
		return nil, errConnClosed
	default:
	}
	select {
	case data := <-c.in:
		return data, nil
	case <-c.done:
		return nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) push(data string) {
	c.in <- []byte(data)
}

func (c *fakeConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

type fakeDialer struct {
	mu       sync.Mutex
	fail     error
	attempts int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (ws.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.fail != nil {
		return nil, d.fail
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := newFakeConn(url)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// conn returns the latest connection dialed for url
func (d *fakeDialer) conn(url string) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.conns) - 1; i >= 0; i-- {
		if d.conns[i].url == url {
			return d.conns[i]
		}
	}
	return nil
}

func (d *fakeDialer) all() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

type countingKV struct {
	kv   *order.MemoryKV
	mu   sync.Mutex
	sets int
}

func newCountingKV() *countingKV {
	return &countingKV{kv: order.NewMemoryKV()}
}

func (c *countingKV) Get(key string) ([]byte, bool, error) { return c.kv.Get(key) }
func (c *countingKV) Delete(key string) error               { return c.kv.Delete(key) }
func (c *countingKV) Close() error                          { return c.kv.Close() }

func (c *countingKV) Set(key string, value []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.kv.Set(key, value)
}

func (c *countingKV) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type statusRecorder struct {
	mu     sync.Mutex
	events map[string][]Status
}

func newStatusRecorder() *statusRecorder {
	return &statusRecorder{events: make(map[string][]Status)}
}

func (r *statusRecorder) record(id string, s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[id] = append(r.events[id], s)
}

func (r *statusRecorder) of(id string) []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.events[id]...)
}
