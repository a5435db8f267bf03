package offshoredispatch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jmptrader/shiplink/internal/httpmsg"
)

// originClient is shared by every dispatcher. It never follows redirects
// (a forward proxy relays exactly one hop; the client on the other end of
// the tunnel decides whether to follow a 3xx) and relies on
// http.Transport's own scheme-based dispatch to speak TLS when the origin
// URL is https:// — this is spec.md §4.D cases 2 and 3 handled by the
// same "standard HTTP origin client" the spec treats as an external
// collaborator.
var originClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// fetchOrigin performs case (2)/(3) of spec.md §4.D: build an origin
// request from the parsed proxy request, strip hop-by-hop headers,
// execute it, and buffer the full response body.
func fetchOrigin(req *http.Request, body []byte) ([]byte, error) {
	target, err := originURL(req)
	if err != nil {
		return nil, fmt.Errorf("build origin URL: %w", err)
	}

	originReq, err := http.NewRequest(req.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}
	originReq.Header = req.Header.Clone()
	httpmsg.StripHopByHop(originReq.Header)

	resp, err := originClient.Do(originReq)
	if err != nil {
		return nil, fmt.Errorf("origin fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read origin response: %w", err)
	}

	return httpmsg.EncodeResponse(resp.StatusCode, resp.Header, respBody), nil
}

// originURL reconstructs the fully-qualified origin URL from a parsed
// proxy request, which may have arrived as an absolute-URI
// ("GET http://host/path HTTP/1.1") or as origin-form with a Host header.
func originURL(req *http.Request) (*url.URL, error) {
	if req.URL.IsAbs() {
		return req.URL, nil
	}

	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	if host == "" {
		return nil, fmt.Errorf("no Host header or absolute-URI on request")
	}

	scheme := req.URL.Scheme
	if scheme == "" {
		scheme = "http"
	}

	u := *req.URL
	u.Scheme = scheme
	u.Host = host
	return &u, nil
}
