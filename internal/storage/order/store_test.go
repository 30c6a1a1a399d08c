package order

import (
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testKey = "kanban-terminal-tab-order"

// countingKV records writes made through it
type countingKV struct {
	*MemoryKV
	sets    int
	deletes int
	failSet bool
}

func newCountingKV() *countingKV {
	return &countingKV{MemoryKV: NewMemoryKV()}
}

func (c *countingKV) Set(key string, value []byte) error {
	c.sets++
	if c.failSet {
		return errors.New("disk full")
	}
	return c.MemoryKV.Set(key, value)
}

func (c *countingKV) Delete(key string) error {
	c.deletes++
	return c.MemoryKV.Delete(key)
}

func stored(t *testing.T, kv KV) map[string][]string {
	t.Helper()
	raw, ok, err := kv.Get(testKey)
	require.NoError(t, err)
	if !ok {
		return nil
	}
	var out map[string][]string
	require.NoError(t, sonic.Unmarshal(raw, &out))
	return out
}

func TestOpenNormalizesRecord(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(testKey, []byte(`{
		"p1": [" a ", "", "b", 3, null],
		"p2": "not-an-array",
		"p3": ["  "],
		"": ["x"]
	}`)))

	s := Open(kv, testKey, zap.NewNop())

	assert.Equal(t, []string{"a", "b"}, s.Order("p1"))
	assert.Empty(t, s.Order("p2"))
	assert.Empty(t, s.Order("p3"))
	assert.Equal(t, []string{"p1"}, s.Projects())
}

func TestOpenTreatsMalformedRecordAsEmpty(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(testKey, []byte(`{not json`)))

	s := Open(kv, testKey, zap.New(core))

	assert.Empty(t, s.Projects())
	assert.Equal(t, 1, logs.FilterMessage("Failed to parse stored tab order").Len())
}

func TestOpenWithoutRecord(t *testing.T) {
	s := Open(NewMemoryKV(), testKey, nil)
	assert.Empty(t, s.Projects())
	assert.Nil(t, s.Order("p1"))
}

func TestCaptureSkipsRedundantWrites(t *testing.T) {
	kv := newCountingKV()
	s := Open(kv, testKey, zap.NewNop())

	assert.True(t, s.Capture("p1", []string{"a", "b"}))
	assert.False(t, s.Capture("p1", []string{"a", "b"}))
	assert.Equal(t, 1, kv.sets)

	assert.True(t, s.Capture("p1", []string{"b", "a"}))
	assert.Equal(t, 2, kv.sets)
	assert.Equal(t, map[string][]string{"p1": {"b", "a"}}, stored(t, kv))
}

func TestCaptureEmptyRemovesProject(t *testing.T) {
	kv := newCountingKV()
	s := Open(kv, testKey, zap.NewNop())

	s.Capture("p1", []string{"a"})
	s.Capture("p2", []string{"b"})

	assert.True(t, s.Capture("p1", nil))
	assert.Equal(t, map[string][]string{"p2": {"b"}}, stored(t, kv))

	assert.True(t, s.Capture("p2", []string{""}))
	assert.Equal(t, 1, kv.deletes)
	assert.Nil(t, stored(t, kv))

	assert.False(t, s.Capture("p2", nil))
	assert.Equal(t, 1, kv.deletes)
}

func TestCaptureIgnoresEmptyProject(t *testing.T) {
	kv := newCountingKV()
	s := Open(kv, testKey, zap.NewNop())

	assert.False(t, s.Capture("", []string{"a"}))
	assert.Equal(t, 0, kv.sets)
}

func TestCaptureKeepsCacheOnWriteFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	kv := newCountingKV()
	kv.failSet = true
	s := Open(kv, testKey, zap.New(core))

	assert.True(t, s.Capture("p1", []string{"a"}))
	assert.Equal(t, []string{"a"}, s.Order("p1"))
	assert.Equal(t, 1, logs.FilterMessage("Failed to persist tab order").Len())
}

func TestOrderReturnsCopy(t *testing.T) {
	s := Open(NewMemoryKV(), testKey, zap.NewNop())
	s.Capture("p1", []string{"a", "b"})

	got := s.Order("p1")
	got[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, s.Order("p1"))
}

func TestStoreRoundTripAcrossOpen(t *testing.T) {
	kv := NewMemoryKV()
	Open(kv, testKey, zap.NewNop()).Capture("p1", []string{"b", "a"})

	reopened := Open(kv, testKey, zap.NewNop())
	assert.Equal(t, []string{"b", "a"}, reopened.Order("p1"))
}
