// Package offshoredispatch implements the offshore's per-link dispatcher
// (spec.md §4.D, Component D): it consumes framed requests, executes them
// against origin servers as plain HTTP, HTTPS, or raw CONNECT tunnels, and
// serializes results back as framed responses.
//
// It generalizes the teacher's socket/httpforwarder.go, whose
// onNewWANRequest dials a fixed local target and streams the reply back
// on the same channel-based connection. Here the dial target is parsed
// out of the embedded HTTP request itself, and a second "tunnel" mode
// exists where the dispatcher stops parsing and just relays bytes.
package offshoredispatch

import (
	"bytes"
	"net"
	"net/http"
	"sync"

	"github.com/jmptrader/shiplink/internal/httpmsg"
	"github.com/jmptrader/shiplink/internal/linkmgr"
	"github.com/jmptrader/shiplink/internal/logging"
	"github.com/jmptrader/shiplink/internal/metrics"
	"github.com/jmptrader/shiplink/internal/wire"
)

// Dialer opens a TCP connection to a CONNECT or origin-fetch target. It
// exists so tests can substitute a stub origin without touching the
// network, per spec.md §8's end-to-end scenarios.
type Dialer interface {
	Dial(network, address string) (net.Conn, error)
}

type netDialer struct{}

func (netDialer) Dial(network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}

// Dispatcher holds the per-link state spec.md §4.D describes: whether the
// link is currently tunneling, and the upstream socket if so. Both fields
// are mutated only under mu, since the frame-processing loop and the
// tunnel's upstream-to-link pump goroutine touch them concurrently.
type Dispatcher struct {
	link   *linkmgr.Link
	logger logging.Logger
	dialer Dialer

	mu             sync.Mutex
	inTunnel       bool
	tunnelUpstream net.Conn
}

// New creates a Dispatcher bound to link.
func New(link *linkmgr.Link, logger logging.Logger, dialer Dialer) *Dispatcher {
	if dialer == nil {
		dialer = netDialer{}
	}
	return &Dispatcher{link: link, logger: logger, dialer: dialer}
}

// Run processes frames from the link until it closes. It is meant to be
// called once, synchronously, per accepted link (see listener.go).
func (d *Dispatcher) Run() {
	for frame := range d.link.Frames() {
		if frame.Type != wire.Request {
			d.logger.W("unexpected %s frame from ship, ignoring", frame.Type)
			continue
		}
		d.handleRequestFrame(frame.Payload)
	}
	d.teardownTunnel()
}

func (d *Dispatcher) handleRequestFrame(payload []byte) {
	d.mu.Lock()
	tunneling := d.inTunnel
	upstream := d.tunnelUpstream
	d.mu.Unlock()

	if tunneling {
		if upstream == nil {
			return
		}
		if _, err := upstream.Write(payload); err != nil {
			d.logger.D("write to tunnel upstream failed (upstream likely gone): %v", err)
		}
		return
	}

	req, body, err := httpmsg.ReadRequest(bytes.NewReader(payload))
	if err != nil {
		d.logger.W("parse error: %v", err)
		d.send(internalError(err))
		return
	}

	if req.Method == http.MethodConnect {
		d.handleConnect(req)
		return
	}

	d.handleForward(req, body)
}

func (d *Dispatcher) handleForward(req *http.Request, body []byte) {
	resp, err := fetchOrigin(req, body)
	if err != nil {
		d.logger.W("upstream error for %s %s: %v", req.Method, req.URL, err)
		d.send(badGateway(err))
		return
	}
	d.send(resp)
}

func (d *Dispatcher) send(payload []byte) {
	if err := d.link.Send(wire.Response, payload); err != nil {
		d.logger.D("send on dead link: %v", err)
	}
}

func (d *Dispatcher) teardownTunnel() {
	d.mu.Lock()
	upstream := d.tunnelUpstream
	d.inTunnel = false
	d.tunnelUpstream = nil
	d.mu.Unlock()

	if upstream != nil {
		upstream.Close()
		metrics.TunnelsActive.Dec()
	}
}
