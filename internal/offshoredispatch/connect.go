package offshoredispatch

import (
	"net"
	"net/http"

	"github.com/jmptrader/shiplink/internal/httpmsg"
	"github.com/jmptrader/shiplink/internal/metrics"
	"github.com/jmptrader/shiplink/internal/wire"
)

// handleConnect implements spec.md §4.D case 1: dial the CONNECT target,
// and on success flip the link into tunnel mode and start relaying
// upstream bytes back as RESPONSE frames; on failure synthesize a 502.
func (d *Dispatcher) handleConnect(req *http.Request) {
	target := req.Host
	if target == "" {
		target = req.URL.Opaque
	}
	if target == "" {
		target = req.RequestURI
	}
	host, port := httpmsg.ParseConnectTarget(target)

	upstream, err := d.dialer.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		d.logger.W("CONNECT dial %s:%s failed: %v", host, port, err)
		d.send(badGateway(err))
		return
	}

	d.mu.Lock()
	d.inTunnel = true
	d.tunnelUpstream = upstream
	d.mu.Unlock()
	metrics.TunnelsActive.Inc()

	d.logger.I("CONNECT tunnel established to %s:%s", host, port)
	d.send([]byte(connectEstablished))

	go d.pumpUpstream(upstream)
}

// pumpUpstream reads bytes from the tunnel's upstream socket and emits
// each chunk read as a RESPONSE frame, until the upstream closes — at
// which point it clears inTunnel/tunnelUpstream so the dispatcher resumes
// message-mode parsing, per spec.md §4.D.
func (d *Dispatcher) pumpUpstream(upstream net.Conn) {
	buf := make([]byte, 32*1024)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if sendErr := d.link.Send(wire.Response, chunk); sendErr != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}

	d.mu.Lock()
	cleared := d.tunnelUpstream == upstream
	if cleared {
		d.inTunnel = false
		d.tunnelUpstream = nil
	}
	d.mu.Unlock()
	upstream.Close()
	// teardownTunnel has already decremented the gauge if it got here first.
	if cleared {
		metrics.TunnelsActive.Dec()
	}
}
