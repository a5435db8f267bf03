// Package introspect implements the read-only HTTP surfaces SPEC_FULL.md
// §E.3 adds on top of the base proxy: GET /status on the ship and GET
// /links on the offshore. Both follow the teacher's api.Controller shape
// (a jsonResponse helper, one method per route) rather than inventing a
// JSON API convention from scratch.
package introspect

import (
	"encoding/json"
	"net/http"

	"github.com/jmptrader/shiplink/internal/metrics"
	"github.com/jmptrader/shiplink/internal/offshoredispatch"
	"github.com/jmptrader/shiplink/internal/shipsched"
)

func jsonResponse(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("content-type", "application/json")
	res, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write(res)
}

// ShipStatus is the GET /status response body on the ship.
type ShipStatus struct {
	LinkConnected bool `json:"link_connected"`
	TunnelActive  bool `json:"tunnel_active"`
	QueueDepth    int  `json:"queue_depth"`
}

// ShipController serves the ship's introspection routes.
type ShipController struct {
	Scheduler *shipsched.Scheduler
	LinkUp    func() bool
}

func (c *ShipController) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	jsonResponse(w, ShipStatus{
		LinkConnected: c.LinkUp(),
		TunnelActive:  c.Scheduler.IsTunneling(),
		QueueDepth:    c.Scheduler.QueueLen(),
	})
}

// OffshoreLinksResponse is the GET /links response body on the offshore.
type OffshoreLinksResponse struct {
	Links []string `json:"links"`
}

// OffshoreController serves the offshore's introspection routes.
type OffshoreController struct {
	Listener *offshoredispatch.Listener
}

func (c *OffshoreController) Links(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	jsonResponse(w, OffshoreLinksResponse{Links: c.Listener.ActiveLinks()})
}

// Mount registers the /metrics handler on mux. Callers register /status
// or /links on the same mux themselves.
func Mount(mux *http.ServeMux) {
	mux.Handle("/metrics", metrics.Handler())
}
