package wire

import (
	"fmt"
	"io"
	"sync"
)

// Sender is the link's serialized writer: exactly one write is ever in
// flight on the underlying socket, so frames are never interleaved.
//
// This generalizes the teacher's channelHandler.writeToWAN, which drains
// a single channel of outbound messages in a "for m := range c.Out" loop
// and io.Copy's each one, one at a time, onto the shared net.Conn. Here
// the payload is framed first (rather than streamed as a PrependHeaderReader)
// because spec.md requires every payload handed to the sender to be an
// atomic, unsplit write.
type Sender struct {
	w io.Writer

	mu      sync.Mutex
	closed  bool
	err     error
	queue   chan sendRequest
	closing chan struct{}
	done    chan struct{}
}

type sendRequest struct {
	frame []byte
	done  chan error
}

// NewSender creates a Sender that writes framed bytes to w and starts its
// single writer goroutine. Callers must call Close when the underlying
// connection goes away.
func NewSender(w io.Writer) *Sender {
	s := &Sender{
		w:       w,
		queue:   make(chan sendRequest, 64),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// run drains the queue until closing is signaled. It never closes queue
// itself — Close only closes the separate closing channel, so a Send that
// loses the race to enqueue against a concurrent Close always has a live
// channel to select against instead of a closed one to panic on.
func (s *Sender) run() {
	defer close(s.done)
	for {
		select {
		case req := <-s.queue:
			_, err := s.w.Write(req.frame)
			if err != nil {
				s.fail(err)
				req.done <- err
				continue
			}
			req.done <- nil
		case <-s.closing:
			return
		}
	}
}

// fail marks the sender permanently closed with err; further Send calls
// and any already-queued requests observe ErrLinkClosed-wrapped err.
func (s *Sender) fail(err error) {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.err = err
	}
	s.mu.Unlock()
}

// Send encodes (typ, payload) into a frame and hands it to the single
// writer goroutine, blocking until the write completes (or the sender has
// failed/closed). A payload handed to Send is never split or reordered
// with respect to other payloads enqueued on the same Sender.
func (s *Sender) Send(typ Type, payload []byte) error {
	s.mu.Lock()
	if s.closed {
		err := s.err
		s.mu.Unlock()
		if err == nil || err == ErrLinkClosed {
			return ErrLinkClosed
		}
		return fmt.Errorf("%w: %v", ErrLinkClosed, err)
	}
	s.mu.Unlock()

	frame, err := Encode(typ, payload)
	if err != nil {
		return err
	}

	req := sendRequest{frame: frame, done: make(chan error, 1)}

	select {
	case s.queue <- req:
	case <-s.closing:
		return ErrLinkClosed
	case <-s.done:
		return ErrLinkClosed
	}

	select {
	case err := <-req.done:
		if err != nil {
			return ErrLinkClosed
		}
		return nil
	case <-s.done:
		return ErrLinkClosed
	}
}

// Close stops the writer goroutine and fails any request still queued.
// Idempotent.
func (s *Sender) Close() {
	s.mu.Lock()
	s.closed = true
	if s.err == nil {
		s.err = ErrLinkClosed
	}
	select {
	case <-s.closing:
	default:
		close(s.closing)
	}
	s.mu.Unlock()
	<-s.done
}
