package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/event"
)

// chanSink is a well-behaved sink that records everything written to it.
type chanSink struct {
	frames    chan []byte
	pings     chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func newChanSink() *chanSink {
	return &chanSink{
		frames: make(chan []byte, 100),
		pings:  make(chan struct{}, 100),
		closed: make(chan struct{}),
	}
}

func (s *chanSink) Write(p []byte) error {
	s.frames <- append([]byte(nil), p...)
	return nil
}

func (s *chanSink) Ping() error {
	s.pings <- struct{}{}
	return nil
}

func (s *chanSink) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// failSink errors on every write, like a broken pipe.
type failSink struct {
	chanSink
}

func (s *failSink) Write([]byte) error { return errors.New("broken pipe") }

// stuckSink blocks writes until released, simulating a stalled consumer.
type stuckSink struct {
	chanSink
	release chan struct{}
}

func (s *stuckSink) Write(p []byte) error {
	<-s.release
	return s.chanSink.Write(p)
}

func newTestHub(t *testing.T, opts Opts) *Hub {
	t.Helper()
	h := New(clockwork.NewRealClock(), opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

func mustEvent(t *testing.T, resource string, action event.Action, id string) event.Event {
	t.Helper()
	ev, err := event.ResourceChanged(resource, action, id, nil)
	require.NoError(t, err)
	return ev
}

func receiveFrame(t *testing.T, s *chanSink) []byte {
	t.Helper()
	select {
	case f := <-s.frames:
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func assertNoFrame(t *testing.T, s *chanSink) {
	t.Helper()
	select {
	case f := <-s.frames:
		t.Fatalf("unexpected frame: %s", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_FanOutCompleteness(t *testing.T) {
	h := newTestHub(t, Opts{})

	sinks := []*chanSink{newChanSink(), newChanSink(), newChanSink()}
	for _, s := range sinks {
		_, err := h.Subscribe(s)
		require.NoError(t, err)
	}

	h.Publish(mustEvent(t, "materials", event.ActionDelete, "m1"))

	for i, s := range sinks {
		frame := receiveFrame(t, s)
		assert.Contains(t, string(frame), `"id":"m1"`, "sink %d", i)
		assertNoFrame(t, s)
	}

	// A connection subscribing after the publish never sees that event.
	late := newChanSink()
	_, err := h.Subscribe(late)
	require.NoError(t, err)
	assertNoFrame(t, late)
}

func TestPublish_FailedWriteIsolation(t *testing.T) {
	h := newTestHub(t, Opts{})

	bad := &failSink{chanSink: *newChanSink()}
	good1, good2 := newChanSink(), newChanSink()

	_, err := h.Subscribe(good1)
	require.NoError(t, err)
	_, err = h.Subscribe(bad)
	require.NoError(t, err)
	_, err = h.Subscribe(good2)
	require.NoError(t, err)

	h.Publish(mustEvent(t, "messages", event.ActionCreate, "msg1"))
	receiveFrame(t, good1)
	receiveFrame(t, good2)

	// Give the failed writer a moment to die, then publish again: healthy
	// connections still get the event and the dead one is swept out.
	assert.Eventually(t, func() bool {
		select {
		case <-bad.closed:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	h.Publish(mustEvent(t, "messages", event.ActionCreate, "msg2"))
	receiveFrame(t, good1)
	receiveFrame(t, good2)
	assert.Equal(t, 2, h.Count())
}

func TestPublish_PerConnectionOrdering(t *testing.T) {
	h := newTestHub(t, Opts{SendBufferSize: 64})

	s := newChanSink()
	_, err := h.Subscribe(s)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		h.Publish(mustEvent(t, "materials", event.ActionUpdate, fmt.Sprintf("m%02d", i)))
	}

	for i := 0; i < 20; i++ {
		frame := receiveFrame(t, s)
		assert.Contains(t, string(frame), fmt.Sprintf(`"id":"m%02d"`, i))
	}
}

func TestPublish_SlowConnectionEvicted(t *testing.T) {
	h := newTestHub(t, Opts{SendBufferSize: 1})

	stuck := &stuckSink{chanSink: *newChanSink(), release: make(chan struct{})}
	defer close(stuck.release)
	healthy := newChanSink()

	_, err := h.Subscribe(stuck)
	require.NoError(t, err)
	_, err = h.Subscribe(healthy)
	require.NoError(t, err)

	// The stuck writer takes the first frame and blocks; its buffer then
	// fills and a later publish evicts the connection. Draining the healthy
	// sink between publishes keeps its buffer empty.
	for i := 0; i < 3; i++ {
		h.Publish(mustEvent(t, "fees", event.ActionUpdate, fmt.Sprintf("f%d", i)))
		receiveFrame(t, healthy)
	}
	assert.Equal(t, 1, h.Count())
}

func TestSubscribe_MaxConnections(t *testing.T) {
	h := newTestHub(t, Opts{MaxConnections: 2})

	_, err := h.Subscribe(newChanSink())
	require.NoError(t, err)
	_, err = h.Subscribe(newChanSink())
	require.NoError(t, err)

	rejected := newChanSink()
	_, err = h.Subscribe(rejected)
	require.Error(t, err)

	select {
	case <-rejected.closed:
	case <-time.After(time.Second):
		t.Fatal("rejected sink was not closed")
	}
	assert.Equal(t, 2, h.Count())
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	h := newTestHub(t, Opts{})

	s := newChanSink()
	conn, err := h.Subscribe(s)
	require.NoError(t, err)

	h.Unsubscribe(conn)
	h.Unsubscribe(conn)
	h.Unsubscribe(nil)

	assert.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 5*time.Millisecond)

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection writer did not exit")
	}
}

func TestShutdown_ClosesAllConnections(t *testing.T) {
	h := New(clockwork.NewRealClock(), Opts{})

	sinks := []*chanSink{newChanSink(), newChanSink()}
	conns := make([]*Connection, len(sinks))
	for i, s := range sinks {
		conn, err := h.Subscribe(s)
		require.NoError(t, err)
		conns[i] = conn
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	for i, s := range sinks {
		select {
		case <-s.closed:
		case <-time.After(time.Second):
			t.Fatalf("sink %d not closed on shutdown", i)
		}
		select {
		case <-conns[i].Done():
		case <-time.After(time.Second):
			t.Fatalf("connection %d writer did not exit", i)
		}
	}
}

func TestShutdown_LateCallersDoNotBlock(t *testing.T) {
	h := New(clockwork.NewRealClock(), Opts{})

	conn, err := h.Subscribe(newChanSink())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	// The run goroutine is gone, so nobody drains the command channel.
	// Every public method must still return, even past the buffer size.
	ev := mustEvent(t, "materials", event.ActionUpdate, "m1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 300; i++ {
			h.Publish(ev)
		}
		_, err := h.Subscribe(newChanSink())
		assert.ErrorIs(t, err, ErrStopped)
		assert.Equal(t, 0, h.Count())
		h.Unsubscribe(conn)
		assert.NoError(t, h.Shutdown(context.Background()))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("caller blocked on stopped hub")
	}
}

func TestHeartbeat_PingsConnections(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(clock, Opts{HeartbeatInterval: 30 * time.Second})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	}()

	// Wait for the run loop to park on the heartbeat ticker.
	clock.BlockUntil(1)

	s := newChanSink()
	_, err := h.Subscribe(s)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	select {
	case <-s.pings:
	case <-time.After(time.Second):
		t.Fatal("no heartbeat ping received")
	}
}
