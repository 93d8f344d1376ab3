package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Sink is the transport half of a connection: something frames can be
// written to. SSE responses and websocket conns both satisfy it through
// small adapters; the hub never knows which transport it is feeding.
type Sink interface {
	// Write delivers one JSON event frame. Implementations are expected to
	// enforce their own write deadlines.
	Write(p []byte) error
	// Ping delivers a transport-level keepalive.
	Ping() error
	// Close may be called more than once.
	Close() error
}

type frame struct {
	data []byte
	ping bool
}

// Connection is one open observer channel. Owned by the hub from Subscribe
// until eviction or Unsubscribe; callers only hold the handle.
type Connection struct {
	id   uuid.UUID
	sink Sink

	send     chan frame
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newConnection(sink Sink, bufferSize int) *Connection {
	c := &Connection{
		id:     uuid.New(),
		sink:   sink,
		send:   make(chan frame, bufferSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// ID returns the connection's opaque identity.
func (c *Connection) ID() uuid.UUID { return c.id }

// Done is closed once the connection's writer has exited, whether from a
// failed write, eviction, or shutdown. Transport handlers block on this to
// know when to release the underlying request.
func (c *Connection) Done() <-chan struct{} { return c.done }

// run drains the send buffer into the sink. The first failed write ends the
// connection; the hub observes the closed done channel on its next publish.
func (c *Connection) run() {
	defer close(c.done)
	defer func() { _ = c.sink.Close() }()

	for {
		select {
		case f := <-c.send:
			if f.ping {
				if err := c.sink.Ping(); err != nil {
					return
				}
				continue
			}
			if err := c.sink.Write(f.data); err != nil {
				return
			}
		case <-c.stopCh:
			return
		}
	}
}

// stop signals the writer and closes the sink to unblock any in-flight
// write. It does not wait: the hub must never stall on one connection.
func (c *Connection) stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		_ = c.sink.Close()
	})
}
