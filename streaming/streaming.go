// Package streaming delivers pipeline results to a connected client
// under backpressure, generalizing the teacher's websocket/SSE
// transports (ui/transports/websocket, ui/transports/sse) — whose
// writePump/send-channel/ping-keepalive pattern was built for chat
// events — onto RipTide's batch result stream, with one shared state
// machine framed three ways (WebSocket, SSE, NDJSON) instead of one
// per transport.
package streaming

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/riptide/core/logging"
)

// Frame is one unit of streamed output: either a pipeline result or a
// control event (welcome, error, done).
type Frame struct {
	Type      string      `json:"type"`
	Index     int         `json:"index,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	FrameWelcome = "connected"
	FrameResult  = "result"
	FrameError   = "error"
	FrameDone    = "done"
)

// BackpressureObserver is notified when a connection's outbound
// buffer fills and frames start being dropped, so callers can surface
// slow-client metrics without the streaming package depending on a
// metrics library directly.
type BackpressureObserver interface {
	OnSlowClient(connID string, dropped int)
}

type noopObserver struct{}

func (noopObserver) OnSlowClient(string, int) {}

// Connection is a single outbound delivery channel with a bounded
// buffer. When the buffer is full, new frames are dropped rather than
// blocking the producer — a slow client must not stall the batch that
// feeds it.
type Connection struct {
	id       string
	send     chan Frame
	observer BackpressureObserver
	logger   logging.Logger

	mu      sync.Mutex
	closed  bool
	dropped int
}

// Options configures a Connection.
type Options struct {
	ID         string
	BufferSize int
	Observer   BackpressureObserver
	Logger     logging.Logger
}

// NewConnection builds a Connection with a bounded send buffer. A
// zero BufferSize defaults to 256, matching the teacher's websocket
// client send channel sizing.
func NewConnection(opts Options) *Connection {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOp{}
	}
	return &Connection{
		id:       opts.ID,
		send:     make(chan Frame, opts.BufferSize),
		observer: opts.Observer,
		logger:   opts.Logger,
	}
}

// Send enqueues a frame for delivery. If the buffer is full the frame
// is dropped and the backpressure observer is notified; Send never
// blocks.
func (c *Connection) Send(f Frame) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	select {
	case c.send <- f:
	default:
		c.mu.Lock()
		c.dropped++
		dropped := c.dropped
		c.mu.Unlock()
		c.observer.OnSlowClient(c.id, dropped)
		c.logger.Warn("streaming: dropped frame for slow client", map[string]interface{}{
			"connection_id": c.id, "dropped_total": dropped, "frame_type": f.Type,
		})
	}
}

// Welcome sends the initial connected frame carrying data, mirroring
// the teacher's websocket transport's client-id welcome message.
func (c *Connection) Welcome(data interface{}) {
	c.Send(Frame{Type: FrameWelcome, Data: data})
}

// Done sends the terminal done frame, signaling the consumer no more
// frames will arrive.
func (c *Connection) Done() {
	c.Send(Frame{Type: FrameDone})
}

// Frames returns the read side of the connection's outbound buffer,
// for transports to range over.
func (c *Connection) Frames() <-chan Frame {
	return c.send
}

// Close marks the connection closed and closes the outbound channel.
// Safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Dropped returns the number of frames dropped so far due to
// backpressure.
func (c *Connection) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// WriteNDJSON drains c's frames to w as newline-delimited JSON,
// returning when the connection closes or w errors.
func WriteNDJSON(w io.Writer, c *Connection) error {
	for f := range c.Frames() {
		b, err := json.Marshal(f)
		if err != nil {
			continue
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return err
		}
		if flusher, ok := w.(interface{ Flush() }); ok {
			flusher.Flush()
		}
	}
	return nil
}

// WriteSSE drains c's frames to w as Server-Sent Events, following the
// teacher's SSE transport's event/data framing.
func WriteSSE(w io.Writer, c *Connection) error {
	for f := range c.Frames() {
		b, err := json.Marshal(f)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Type, b); err != nil {
			return err
		}
		if flusher, ok := w.(interface{ Flush() }); ok {
			flusher.Flush()
		}
	}
	return nil
}
