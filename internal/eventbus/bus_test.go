package eventbus_test

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisbarc/camshell/internal/eventbus"
)

func TestPublishAndReceive(t *testing.T) {
	bus := eventbus.New(2)
	defer bus.Close()

	var received []eventbus.Event
	var mu sync.Mutex

	bus.Subscribe(func(e eventbus.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	bus.Publish("device.discovered", map[string]string{"host": "esp32-cam2"})

	// Give workers time to process
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "device.discovered", received[0].Type)
	assert.Equal(t, "esp32-cam2", received[0].Payload["host"])
	assert.NotEmpty(t, received[0].ID)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestMultipleListeners(t *testing.T) {
	bus := eventbus.New(2)
	defer bus.Close()

	var count int32

	for i := 0; i < 3; i++ {
		bus.Subscribe(func(_ eventbus.Event) {
			atomic.AddInt32(&count, 1)
		})
	}

	bus.Publish("view.fetch_failed", nil)
	time.Sleep(50 * time.Millisecond)

	assert.EqualValues(t, 3, atomic.LoadInt32(&count))
}

func TestListenerPanicDoesNotCrash(t *testing.T) {
	bus := eventbus.New(1)
	defer bus.Close()

	var goodCalled int32

	bus.Subscribe(func(_ eventbus.Event) {
		panic("intentional panic in listener")
	})
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&goodCalled, 1)
	})

	bus.Publish("panic.event", nil)
	time.Sleep(50 * time.Millisecond)

	// The second listener should still have been called.
	assert.EqualValues(t, 1, atomic.LoadInt32(&goodCalled))
}

func TestClose(t *testing.T) {
	bus := eventbus.New(2)

	var count int32
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&count, 1)
	})

	for i := 0; i < 5; i++ {
		bus.Publish("evt", nil)
	}

	// Close waits for all workers to finish processing.
	bus.Close()

	assert.EqualValues(t, 5, atomic.LoadInt32(&count))
}

func TestDefaultWorkers(t *testing.T) {
	// workers <= 0 should use default without panicking.
	bus := eventbus.New(0)
	require.NotNil(t, bus)
	bus.Close()
}

func TestEventIDsAreUnique(t *testing.T) {
	bus := eventbus.New(1)

	var mu sync.Mutex
	ids := map[string]bool{}
	bus.Subscribe(func(e eventbus.Event) {
		mu.Lock()
		ids[e.ID] = true
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		bus.Publish("evt", nil)
	}
	bus.Close()

	assert.Len(t, ids, 10)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	bus := eventbus.New(1)
	var count int32
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&count, 1)
	})
	bus.Close()
	bus.Close()

	assert.NotPanics(t, func() { bus.Publish("late", nil) })
	assert.EqualValues(t, 0, atomic.LoadInt32(&count))
}

func TestBufferFullDropsEvent(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	bus := eventbus.New(1, eventbus.WithBufferSize(1), eventbus.WithLogger(logger))

	block := make(chan struct{})
	bus.Subscribe(func(_ eventbus.Event) { <-block })

	// One event is held by the worker, one fills the buffer, the rest drop.
	for i := 0; i < 5; i++ {
		bus.Publish("burst", nil)
	}
	close(block)
	bus.Close()

	assert.Contains(t, logs.String(), "buffer full")
}

func TestLogListener(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	eventbus.LogListener(logger)(eventbus.Event{
		ID:      "abc",
		Type:    "view.fetch_failed",
		Payload: map[string]string{"route": "About"},
	})

	out := logs.String()
	assert.Contains(t, out, `"event_id":"abc"`)
	assert.Contains(t, out, `"event_type":"view.fetch_failed"`)
	assert.Contains(t, out, `"route":"About"`)
}
