package shipsched

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/jmptrader/shiplink/internal/httpmsg"
	"github.com/jmptrader/shiplink/internal/linkmgr"
)

// ProxyServer is the ship's local HTTP proxy surface (spec.md §4.C):
// regular requests are queued on the Scheduler's FIFO; CONNECT requests
// are handled directly by flipping the link into tunnel mode.
type ProxyServer struct {
	Scheduler *Scheduler
}

func (p *ProxyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.Scheduler.handleConnect(w, r)
		return
	}
	p.handleRegular(w, r)
}

func (p *ProxyServer) handleRegular(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	r.Body.Close()

	reqBytes := httpmsg.EncodeRequest(r, body)

	tx := &transaction{reqBytes: reqBytes, done: make(chan struct{})}
	p.Scheduler.submit(tx)

	if tx.err != nil {
		writeUpstreamError(w, tx.err)
		return
	}

	resp, respBody, err := httpmsg.ReadResponse(bytes.NewReader(tx.respPayload), r)
	if err != nil {
		http.Error(w, "malformed response from offshore: "+err.Error(), http.StatusBadGateway)
		return
	}

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)
}

// writeUpstreamError translates the taxonomy of spec.md §7 into the
// client-facing status code: any link-boundary failure becomes 502.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, linkmgr.ErrUpstreamUnavailable):
		http.Error(w, "upstream link unavailable: "+err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "link closed before response arrived: "+err.Error(), http.StatusBadGateway)
	}
}
