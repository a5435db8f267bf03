package offshoredispatch

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/jmptrader/shiplink/internal/linkmgr"
	"github.com/jmptrader/shiplink/internal/logging"
	"github.com/jmptrader/shiplink/internal/metrics"
)

// Listener is the offshore half of spec.md §4.B's link manager: for each
// accepted socket it builds a fresh Link and binds a new per-connection
// Dispatcher to it, exactly the way the teacher's socket.server accepts a
// connection and hands it to a fresh ConnectionHandler.OnConnect call.
type Listener struct {
	Port   int
	Logger logging.Logger

	mu        sync.Mutex
	listener  net.Listener
	dialer    Dialer
	dispatchs map[string]*Dispatcher
}

// Serve binds the configured port and accepts links until ctx is
// canceled or Accept fails.
func (l *Listener) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.Port))
	if err != nil {
		return fmt.Errorf("offshore listen: %w", err)
	}
	l.mu.Lock()
	l.listener = ln
	l.dispatchs = make(map[string]*Dispatcher)
	l.mu.Unlock()

	l.Logger.I("offshore listening on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("offshore accept: %w", err)
		}

		metrics.OffshoreLinksAccepted.Inc()
		link := linkmgr.New(conn, l.Logger)
		d := New(link, l.Logger.WithField("link_id", link.ID), l.dialer)

		l.mu.Lock()
		l.dispatchs[link.ID] = d
		l.mu.Unlock()

		go func() {
			d.Run()
			l.mu.Lock()
			delete(l.dispatchs, link.ID)
			l.mu.Unlock()
		}()
	}
}

// ActiveLinks reports the identifiers of currently accepted links, for
// the GET /links introspection surface (SPEC_FULL.md §E.3).
func (l *Listener) ActiveLinks() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.dispatchs))
	for id := range l.dispatchs {
		ids = append(ids, id)
	}
	return ids
}
