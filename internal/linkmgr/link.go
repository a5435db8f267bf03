// Package linkmgr owns the single ship<->offshore TCP connection: pumping
// bytes off the socket into the framing decoder, running the serialized
// sender, and reconnecting the ship side with backoff when the link drops
// (spec.md §4.B).
//
// The Link type generalizes the teacher's socket.Pipe (a net.Conn wrapper
// that owns exactly one decode-in-progress state and hands out message
// readers) into the frame-oriented model spec.md requires: one decoder,
// one sender, and a channel of fully-decoded frames rather than blocking
// NextMessage() calls.
package linkmgr

import (
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/jmptrader/shiplink/internal/logging"
	"github.com/jmptrader/shiplink/internal/metrics"
	"github.com/jmptrader/shiplink/internal/wire"
)

// Link is one instance of the ship<->offshore connection: a socket, its
// decoder, and its serialized sender, bound together as spec.md §3
// requires (owns exactly one decoder and one send queue).
type Link struct {
	ID     string
	conn   net.Conn
	sender *wire.Sender
	logger logging.Logger

	frames chan wire.Frame

	closeOnce sync.Once
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// New wraps conn as a Link, starting its read pump and sender.
func New(conn net.Conn, logger logging.Logger) *Link {
	id := uuid.NewString()
	l := &Link{
		ID:     id,
		conn:   conn,
		sender: wire.NewSender(conn),
		logger: logger.WithField("link_id", id),
		frames: make(chan wire.Frame, 32),
		done:   make(chan struct{}),
	}
	go l.readPump()
	return l
}

// readPump reads chunks off the socket and feeds them to the decoder,
// forwarding every recovered frame onto Frames(). It generalizes the
// teacher's channelHandler.readFromWAN loop, which repeatedly calls
// Pipe.NextMessage() — here the pump owns the buffering instead of
// blocking mid-message on the socket, so a single short read can yield
// zero, one, or several frames.
func (l *Link) readPump() {
	decoder := wire.NewDecoder(0)
	buf := make([]byte, 32*1024)
	defer close(l.frames)

	for {
		n, err := l.conn.Read(buf)
		if n > 0 {
			frames, decErr := decoder.Push(buf[:n])
			for _, f := range frames {
				metrics.FramesReceived.WithLabelValues(f.Type.String()).Inc()
				l.frames <- f
			}
			if decErr != nil {
				l.fail(decErr)
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				l.fail(err)
			} else {
				l.fail(wire.ErrLinkClosed)
			}
			return
		}
	}
}

// Frames returns the channel of decoded frames. It is closed when the
// link dies; callers should check Err() afterward.
func (l *Link) Frames() <-chan wire.Frame {
	return l.frames
}

// Send frames typ/payload and blocks until the write is flushed or the
// link fails.
func (l *Link) Send(typ wire.Type, payload []byte) error {
	err := l.sender.Send(typ, payload)
	if err != nil {
		l.fail(err)
	} else {
		metrics.FramesSent.WithLabelValues(typ.String()).Inc()
	}
	return err
}

// Done returns a channel closed once the link has failed or been closed.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err returns the reason the link ended, valid only after Done() is
// closed.
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Link) fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.closeOnce.Do(func() {
		l.logger.D("link ending: %v", err)
		l.sender.Close()
		l.conn.Close()
		close(l.done)
	})
}

// Close tears the link down deliberately (e.g. on shutdown).
func (l *Link) Close() {
	l.fail(wire.ErrLinkClosed)
}
