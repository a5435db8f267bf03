package linkmgr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/jmptrader/shiplink/internal/logging"
	"github.com/jmptrader/shiplink/internal/metrics"
)

// ErrUpstreamUnavailable is returned by WaitForLink when no link becomes
// available before the caller's timeout expires (spec.md §4.B).
var ErrUpstreamUnavailable = errors.New("linkmgr: upstream unavailable")

// ShipLink maintains the ship's single outbound connection to the
// offshore, reconnecting with backoff whenever it drops. This generalizes
// the teacher's socket.client, which dials once and hands the connection
// to a handler for the process lifetime, into a supervised loop: on
// disconnect it waits and redials indefinitely, rebuilding the Link (and
// therefore the decoder and sender) fresh each time, per spec.md §4.B.
type ShipLink struct {
	addr   string
	logger logging.Logger

	backoff *backoff.Backoff

	mu      sync.Mutex
	current *Link
	readyCh chan struct{}
}

// NewShipLink creates a ShipLink that dials host:port. minDelay is the
// backoff floor (spec.md requires >= 1 second); maxDelay bounds how long
// consecutive failures may back off to.
func NewShipLink(host string, port int, minDelay, maxDelay time.Duration, logger logging.Logger) *ShipLink {
	return &ShipLink{
		addr:   fmt.Sprintf("%s:%d", host, port),
		logger: logger,
		backoff: &backoff.Backoff{
			Min:    minDelay,
			Max:    maxDelay,
			Factor: 2,
			Jitter: true,
		},
		readyCh: make(chan struct{}),
	}
}

// Run dials the offshore and, on every disconnect, waits out a backoff
// delay and redials, until ctx is canceled.
func (s *ShipLink) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := net.Dial("tcp", s.addr)
		if err != nil {
			s.logger.W("dial %s failed: %v", s.addr, err)
			if !s.sleepBackoff(ctx) {
				return
			}
			continue
		}

		s.backoff.Reset()
		link := New(conn, s.logger)
		s.logger.I("link established to %s (id=%s)", s.addr, link.ID)
		metrics.LinkUp.Set(1)
		s.setCurrent(link)

		select {
		case <-link.Done():
			s.logger.W("link %s lost: %v", link.ID, link.Err())
		case <-ctx.Done():
			link.Close()
			s.setCurrent(nil)
			metrics.LinkUp.Set(0)
			return
		}

		metrics.LinkUp.Set(0)
		s.setCurrent(nil)

		if !s.sleepBackoff(ctx) {
			return
		}
	}
}

func (s *ShipLink) sleepBackoff(ctx context.Context) bool {
	d := s.backoff.Duration()
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *ShipLink) setCurrent(l *Link) {
	s.mu.Lock()
	s.current = l
	if l != nil {
		close(s.readyCh)
	} else {
		s.readyCh = make(chan struct{})
	}
	s.mu.Unlock()
}

// Current returns the live link, or nil if the ship is currently
// disconnected from the offshore.
func (s *ShipLink) Current() *Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// WaitForLink blocks until a link is available or timeout elapses,
// returning ErrUpstreamUnavailable in the latter case. Per SPEC_FULL.md
// Open Question (b), this bounds how long a queued transaction can be
// stuck behind a dead link instead of leaving it queued forever.
func (s *ShipLink) WaitForLink(ctx context.Context, timeout time.Duration) (*Link, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		l := s.current
		ch := s.readyCh
		s.mu.Unlock()

		if l != nil {
			return l, nil
		}

		select {
		case <-ch:
			continue
		case <-deadline.C:
			return nil, ErrUpstreamUnavailable
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
