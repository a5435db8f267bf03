// Package shipsched implements the ship's transaction scheduler (spec.md
// §4.C, Component C): a FIFO worker that serializes concurrent client HTTP
// transactions over the single link and correlates each with the next
// inbound response, plus the CONNECT path that switches the link into and
// out of tunnel mode.
//
// The FIFO correlation pattern is grounded directly in the teacher's
// socket/httpforwarder.go: onLANRead sends an EgressMessage carrying a
// per-request ResponseChan, then blocks on <-c for the paired
// IngressMessage before writing the reply back to the client. This
// package generalizes that per-call channel pair into an explicit queue
// and a single worker so the "one at a time" invariant spec.md requires
// is structural rather than incidental.
package shipsched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmptrader/shiplink/internal/linkmgr"
	"github.com/jmptrader/shiplink/internal/logging"
	"github.com/jmptrader/shiplink/internal/metrics"
	"github.com/jmptrader/shiplink/internal/wire"
)

// ErrProtocolError is returned when a frame arrives out of the sequence
// spec.md's positional correlation expects (e.g. a REQUEST frame where a
// RESPONSE was awaited).
var ErrProtocolError = errors.New("shipsched: protocol error, unexpected frame")

// transaction is spec.md §3's Ship transaction: the raw serialized
// request and the sink that will receive its correlated response.
type transaction struct {
	reqBytes []byte

	done        chan struct{}
	respPayload []byte
	err         error
}

// Scheduler owns the FIFO queue, the tunnel-mode gate, and the single
// ShipLink both the FIFO worker and the CONNECT path send frames over.
type Scheduler struct {
	link        *linkmgr.ShipLink
	logger      logging.Logger
	waitTimeout time.Duration

	queue chan *transaction

	// linkMu is the turnstile spec.md §5 requires: whichever of (the FIFO
	// worker, the CONNECT handler) holds it is the link's sole owner for
	// frame sends and frame reads until it releases. The CONNECT handler
	// holds it for an entire tunnel's lifetime, which is exactly how
	// spec.md's "queued items wait" requirement is satisfied — the next
	// FIFO iteration simply blocks acquiring the lock.
	linkMu sync.Mutex

	tunnelMu sync.Mutex
	inTunnel bool
}

// New creates a Scheduler bound to link, with queueSize slots of FIFO
// backlog and waitTimeout bounding how long a queued transaction waits
// for the link to reconnect before failing (SPEC_FULL.md Open Question b).
func New(link *linkmgr.ShipLink, logger logging.Logger, queueSize int, waitTimeout time.Duration) *Scheduler {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &Scheduler{
		link:        link,
		logger:      logger,
		waitTimeout: waitTimeout,
		queue:       make(chan *transaction, queueSize),
	}
	go s.worker()
	return s
}

func (s *Scheduler) worker() {
	for tx := range s.queue {
		metrics.QueueDepth.Dec()
		s.linkMu.Lock()
		s.process(tx)
		s.linkMu.Unlock()
	}
}

// process implements one FIFO iteration of spec.md §4.C: send one REQUEST
// frame, await the next RESPONSE frame, and resolve the transaction. The
// caller holds linkMu.
func (s *Scheduler) process(tx *transaction) {
	defer close(tx.done)

	link, err := s.link.WaitForLink(context.Background(), s.waitTimeout)
	if err != nil {
		tx.err = err
		return
	}

	if err := link.Send(wire.Request, tx.reqBytes); err != nil {
		tx.err = err
		return
	}

	frame, ok := <-link.Frames()
	if !ok {
		tx.err = link.Err()
		if tx.err == nil {
			tx.err = wire.ErrLinkClosed
		}
		return
	}
	if frame.Type != wire.Response {
		tx.err = ErrProtocolError
		return
	}
	tx.respPayload = frame.Payload
}

// submit enqueues tx and blocks until it's resolved, updating the queue
// depth gauge around the wait.
func (s *Scheduler) submit(tx *transaction) {
	metrics.QueueDepth.Inc()
	s.queue <- tx
	<-tx.done
}

func (s *Scheduler) setTunnel(active bool) {
	s.tunnelMu.Lock()
	s.inTunnel = active
	s.tunnelMu.Unlock()
	if active {
		metrics.TunnelsActive.Inc()
	} else {
		metrics.TunnelsActive.Dec()
	}
}

// IsTunneling reports whether the link is currently in tunnel mode, for
// the ship's GET /status introspection surface.
func (s *Scheduler) IsTunneling() bool {
	s.tunnelMu.Lock()
	defer s.tunnelMu.Unlock()
	return s.inTunnel
}

// QueueLen reports the current FIFO backlog length, for GET /status.
func (s *Scheduler) QueueLen() int {
	return len(s.queue)
}
