// Package httpmsg serializes and parses the HTTP/1.1 messages carried as
// frame payloads on the link (spec.md §6, "Embedded HTTP payloads").
//
// The teacher's socket/httpforwarder.go hand-rolls request-line and header
// parsing with net/textproto because its wire format is a raw byte stream
// with no length framing. This protocol already knows the exact payload
// length (the frame header carries it), and spec.md treats "the standard
// HTTP origin client" as an external collaborator, so this package builds
// on net/http's own reader (http.ReadRequest / http.ReadResponse) rather
// than reimplementing header tokenizing — the fidelity requirement in
// spec.md §1 is about preserving bytes across the link, not about owning
// the parser.
package httpmsg

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
)

// HopByHopHeaders lists the headers spec.md §4.D and §6 require stripped
// before a request or response crosses into (or out of) origin-facing
// code. Transfer-Encoding is included because the link always carries a
// known-length blob; chunked framing is never used on the wire.
var HopByHopHeaders = []string{"Proxy-Connection", "Connection", "Transfer-Encoding"}

// StripHopByHop removes the headers in HopByHopHeaders from h, in place.
func StripHopByHop(h http.Header) {
	for _, name := range HopByHopHeaders {
		h.Del(name)
	}
}

// ReadRequest parses a complete HTTP/1.1 request from r (the frame
// payload) and returns it along with its fully-buffered body. Per
// spec.md's non-goal on streaming bodies, the whole body is read into
// memory before returning.
func ReadRequest(r io.Reader) (*http.Request, []byte, error) {
	req, err := http.ReadRequest(bufio.NewReader(r))
	if err != nil {
		return nil, nil, fmt.Errorf("httpmsg: parse request: %w", err)
	}
	body, err := readAllAndClose(req.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("httpmsg: read request body: %w", err)
	}
	return req, body, nil
}

// ReadResponse parses a complete HTTP/1.1 response from r, matching it
// against req (needed by net/http to decide, e.g., whether a body is
// permitted for the given request method), and returns it with its fully
// buffered body.
func ReadResponse(r io.Reader, req *http.Request) (*http.Response, []byte, error) {
	resp, err := http.ReadResponse(bufio.NewReader(r), req)
	if err != nil {
		return nil, nil, fmt.Errorf("httpmsg: parse response: %w", err)
	}
	body, err := readAllAndClose(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("httpmsg: read response body: %w", err)
	}
	return resp, body, nil
}

func readAllAndClose(r io.ReadCloser) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	defer r.Close()
	return io.ReadAll(r)
}

// EncodeRequest renders req and body back into canonical HTTP/1.1 wire
// form: start-line, CRLF headers, blank line, body. Content-Length is
// always set from the actual length of body, and hop-by-hop headers are
// removed.
func EncodeRequest(req *http.Request, body []byte) []byte {
	var buf bytes.Buffer

	requestURI := req.RequestURI
	if requestURI == "" {
		if req.URL != nil {
			requestURI = req.URL.RequestURI()
		} else {
			requestURI = "/"
		}
	}
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", req.Method, requestURI)

	writeHeaders(&buf, req.Header, req.Host, int64(len(body)), true)
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

// EncodeResponse renders a status code, header set and body into
// canonical HTTP/1.1 wire form with an accurate Content-Length and
// without Transfer-Encoding: chunked, per spec.md §4.D. It strips
// hop-by-hop headers, since header here is assumed to have arrived from
// an origin server on the other side of the offshore's fetch.
func EncodeResponse(statusCode int, header http.Header, body []byte) []byte {
	return encodeResponse(statusCode, header, body, true)
}

// EncodeSystemResponse renders a response the offshore or ship
// synthesizes itself (502/500/400 error bodies, the CONNECT 200) rather
// than one relayed from an origin server. Unlike EncodeResponse it does
// not strip hop-by-hop headers, since a synthesized response's headers
// (e.g. "Connection: close" on a 502, per spec.md §7) are being set
// deliberately rather than relayed.
func EncodeSystemResponse(statusCode int, header http.Header, body []byte) []byte {
	return encodeResponse(statusCode, header, body, false)
}

func encodeResponse(statusCode int, header http.Header, body []byte, stripHopByHop bool) []byte {
	var buf bytes.Buffer

	text := http.StatusText(statusCode)
	if text == "" {
		text = "Unknown"
	}
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", statusCode, text)

	if header == nil {
		header = make(http.Header)
	}
	writeHeaders(&buf, header, "", int64(len(body)), stripHopByHop)
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

func writeHeaders(buf *bytes.Buffer, header http.Header, host string, contentLength int64, stripHopByHop bool) {
	header = header.Clone()
	if stripHopByHop {
		StripHopByHop(header)
	}
	header.Set("Content-Length", fmt.Sprintf("%d", contentLength))

	if host != "" && header.Get("Host") == "" {
		fmt.Fprintf(buf, "Host: %s\r\n", host)
	}
	for key, values := range header {
		for _, v := range values {
			fmt.Fprintf(buf, "%s: %s\r\n", textproto.CanonicalMIMEHeaderKey(key), v)
		}
	}
}

// ParseConnectTarget splits a CONNECT request's authority-form target
// ("host:port" or bare "host") into host and port, defaulting the port to
// 443 when omitted, per spec.md §4.D case 1.
func ParseConnectTarget(target string) (host, port string) {
	host = target
	port = "443"
	if i := lastColon(target); i >= 0 {
		host = target[:i]
		port = target[i+1:]
	}
	return host, port
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
		if s[i] == ']' {
			// bracketed IPv6 with no port
			return -1
		}
	}
	return -1
}
