package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/event"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/metrics"
)

const commandTimeout = 5 * time.Second

// ErrStopped is returned by Subscribe after the hub has shut down.
var ErrStopped = errors.New("hub stopped")

// --- Command types ---

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type subscribeCmd struct {
	baseHubCmd
	sink    Sink
	replyCh chan subscribeReply
}

type subscribeReply struct {
	conn *Connection
	err  error
}

type unsubscribeCmd struct {
	baseHubCmd
	conn *Connection
}

type publishCmd struct {
	baseHubCmd
	data []byte
}

type countCmd struct {
	baseHubCmd
	replyCh chan int
}

type stopCmd struct {
	baseHubCmd
}

// Opts configures a Hub.
type Opts struct {
	// MaxConnections caps the active set; 0 means unlimited.
	MaxConnections int
	// SendBufferSize is the per-connection frame buffer. A connection whose
	// buffer is full at publish time is evicted as slow.
	SendBufferSize int
	// HeartbeatInterval spaces transport keepalives; 0 disables them.
	HeartbeatInterval time.Duration
	// StopTimeout bounds Shutdown when no deadline is on the context.
	StopTimeout time.Duration
}

func (o *Opts) withDefaults() {
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 16
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Second
	}
}

// Hub fans events out to every open connection. All state is owned by the
// run goroutine; public methods communicate through the command channel.
type Hub struct {
	cmdCh chan hubCmd
	clock clockwork.Clock
	opts  Opts

	connections map[uuid.UUID]*Connection
	done        chan struct{}
}

// New creates and starts a hub.
func New(clock clockwork.Clock, opts Opts) *Hub {
	opts.withDefaults()
	h := &Hub{
		cmdCh:       make(chan hubCmd, 256),
		clock:       clock,
		opts:        opts,
		connections: make(map[uuid.UUID]*Connection),
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

// Subscribe opens a connection over the given sink and returns its handle.
// The caller keeps the handle until disconnect and must pair subscription
// with an initial full fetch: events published before Subscribe returned are
// never replayed.
func (h *Hub) Subscribe(sink Sink) (*Connection, error) {
	replyCh := make(chan subscribeReply, 1)
	select {
	case h.cmdCh <- subscribeCmd{sink: sink, replyCh: replyCh}:
	case <-h.done:
		return nil, ErrStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.conn, reply.err
	case <-h.done:
		return nil, ErrStopped
	case <-timer.Chan():
		return nil, fmt.Errorf("subscribe command timed out after %v", commandTimeout)
	}
}

// Unsubscribe removes a connection on normal client disconnect. Idempotent.
func (h *Hub) Unsubscribe(conn *Connection) {
	if conn == nil {
		return
	}
	select {
	case h.cmdCh <- unsubscribeCmd{conn: conn}:
	case <-h.done:
	}
}

// Publish serializes the event once and fans it out to every open
// connection. Delivery is best effort: a connection that cannot accept the
// frame is evicted, and nothing is ever reported back to the caller.
func (h *Hub) Publish(ev event.Event) {
	data, err := ev.Marshal()
	if err != nil {
		slog.Error("Dropping unmarshalable event", "resource", ev.Resource, "error", err)
		return
	}
	metrics.HubEventsPublishedTotal.Inc()
	select {
	case h.cmdCh <- publishCmd{data: data}:
	case <-h.done:
		slog.Debug("Dropping publish on stopped hub", "resource", ev.Resource)
	}
}

// Count returns the number of open connections, or -1 if the hub is
// unresponsive.
func (h *Hub) Count() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- countCmd{replyCh: replyCh}:
	case <-h.done:
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-h.done:
		return 0
	case <-timer.Chan():
		slog.Warn("Count timed out", "timeout", commandTimeout)
		return -1
	}
}

// Shutdown closes every connection and stops the run goroutine. Blocks until
// done or the context/stop timeout elapses.
func (h *Hub) Shutdown(ctx context.Context) error {
	select {
	case h.cmdCh <- stopCmd{}:
	case <-h.done:
		return nil
	}

	timer := h.clock.NewTimer(h.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
		return nil
	case <-ctx.Done():
		metrics.HubStopTimeoutsTotal.Inc()
		return fmt.Errorf("hub shutdown: %w", ctx.Err())
	case <-timer.Chan():
		metrics.HubStopTimeoutsTotal.Inc()
		return fmt.Errorf("hub shutdown timed out after %v", h.opts.StopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAll()
		}
	}()

	var heartbeat clockwork.Ticker
	var heartbeatCh <-chan time.Time
	if h.opts.HeartbeatInterval > 0 {
		heartbeat = h.clock.NewTicker(h.opts.HeartbeatInterval)
		defer heartbeat.Stop()
		heartbeatCh = heartbeat.Chan()
	}

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case subscribeCmd:
				h.handleSubscribe(c)
			case unsubscribeCmd:
				h.handleUnsubscribe(c.conn, "disconnect")
			case publishCmd:
				h.handlePublish(c.data)
			case countCmd:
				c.replyCh <- len(h.connections)
			case stopCmd:
				h.closeAll()
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-heartbeatCh:
			h.fanOut(frame{ping: true})
		}
	}
}

func (h *Hub) handleSubscribe(c subscribeCmd) {
	if h.opts.MaxConnections > 0 && len(h.connections) >= h.opts.MaxConnections {
		slog.Warn("Rejecting connection: max connections reached", "max_connections", h.opts.MaxConnections)
		_ = c.sink.Close()
		c.replyCh <- subscribeReply{err: fmt.Errorf("max connections (%d) reached", h.opts.MaxConnections)}
		return
	}

	conn := newConnection(c.sink, h.opts.SendBufferSize)
	h.connections[conn.id] = conn

	metrics.HubActiveConnections.Set(float64(len(h.connections)))
	slog.Debug("Connection subscribed", "connection_id", conn.id.String(), "total_connections", len(h.connections))
	c.replyCh <- subscribeReply{conn: conn}
}

func (h *Hub) handleUnsubscribe(conn *Connection, cause string) {
	if _, exists := h.connections[conn.id]; !exists {
		return
	}

	conn.stop()
	delete(h.connections, conn.id)

	metrics.HubActiveConnections.Set(float64(len(h.connections)))
	slog.Debug("Connection removed", "connection_id", conn.id.String(), "cause", cause, "remaining", len(h.connections))
}

func (h *Hub) handlePublish(data []byte) {
	start := h.clock.Now()
	h.fanOut(frame{data: data})
	metrics.HubPublishDuration.Observe(h.clock.Since(start).Seconds())
}

// fanOut attempts a non-blocking hand-off of the frame to every connection.
// Dead writers and full buffers are collected and evicted afterwards so the
// map is not mutated mid-iteration.
func (h *Hub) fanOut(f frame) {
	var dead, slow []*Connection
	for _, conn := range h.connections {
		select {
		case <-conn.done:
			dead = append(dead, conn)
			continue
		default:
		}
		select {
		case conn.send <- f:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range dead {
		metrics.HubConnectionsEvictedTotal.WithLabelValues("write_failed").Inc()
		h.handleUnsubscribe(conn, "write_failed")
	}
	for _, conn := range slow {
		metrics.HubFramesDroppedTotal.Inc()
		metrics.HubConnectionsEvictedTotal.WithLabelValues("slow").Inc()
		slog.Warn("Evicting slow connection", "connection_id", conn.id.String())
		h.handleUnsubscribe(conn, "slow")
	}
}

func (h *Hub) closeAll() {
	total := len(h.connections)
	for id, conn := range h.connections {
		conn.stop()
		delete(h.connections, id)
	}
	metrics.HubActiveConnections.Set(0)
	slog.Info("Hub closed all connections", "count", total)
}
