package terminal

import (
	"testing"

	"github.com/GriffinCanCode/worktabs/internal/ws"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHubDeliversInSubscriptionOrder(t *testing.T) {
	hub := NewHub(nil)

	var got []string
	hub.Subscribe("s1", func(f ws.Frame) { got = append(got, "first:"+f.Type) })
	hub.Subscribe("s1", func(f ws.Frame) { got = append(got, "second:"+f.Type) })
	hub.Subscribe("s2", func(f ws.Frame) { got = append(got, "other:"+f.Type) })

	hub.Publish("s1", ws.Frame{Type: ws.TypeReady})
	hub.Publish("s1", ws.Frame{Type: ws.TypeData})

	assert.Equal(t, []string{"first:ready", "second:ready", "first:data", "second:data"}, got)
}

func TestHubNoReplay(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish("s1", ws.Frame{Type: ws.TypeData, Data: "early"})

	var got []ws.Frame
	hub.Subscribe("s1", func(f ws.Frame) { got = append(got, f) })
	assert.Empty(t, got)

	hub.Publish("s1", ws.Frame{Type: ws.TypeData, Data: "late"})
	assert.Equal(t, []ws.Frame{{Type: ws.TypeData, Data: "late"}}, got)
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(nil)

	calls := 0
	unsubscribe := hub.Subscribe("s1", func(ws.Frame) { calls++ })
	keep := hub.Subscribe("s1", func(ws.Frame) {})
	defer keep()
	assert.Equal(t, 2, hub.Subscribers("s1"))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, hub.Subscribers("s1"))

	hub.Publish("s1", ws.Frame{Type: ws.TypeData})
	assert.Zero(t, calls)

	keep()
	assert.Zero(t, hub.Subscribers("s1"))
}

func TestHubUnsubscribeDuringPublish(t *testing.T) {
	hub := NewHub(nil)

	var got []string
	var unsubscribe func()
	unsubscribe = hub.Subscribe("s1", func(ws.Frame) {
		got = append(got, "first")
		unsubscribe()
	})
	hub.Subscribe("s1", func(ws.Frame) { got = append(got, "second") })

	hub.Publish("s1", ws.Frame{Type: ws.TypeData})
	hub.Publish("s1", ws.Frame{Type: ws.TypeData})

	assert.Equal(t, []string{"first", "second", "second"}, got)
}

func TestHubRecoversFromPanickingListener(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	hub := NewHub(zap.New(core))

	delivered := false
	hub.Subscribe("s1", func(ws.Frame) { panic("boom") })
	hub.Subscribe("s1", func(ws.Frame) { delivered = true })

	assert.NotPanics(t, func() { hub.Publish("s1", ws.Frame{Type: ws.TypeData}) })
	assert.True(t, delivered)
	assert.Equal(t, 1, logs.FilterMessage("Terminal listener panicked").Len())
}
