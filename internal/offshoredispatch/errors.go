package offshoredispatch

import (
	"net/http"

	"github.com/jmptrader/shiplink/internal/httpmsg"
)

// synthesizeError builds the wire bytes for a 5xx the offshore generates
// itself rather than relays, per spec.md §7: Content-Type
// text/plain; charset=utf-8, Connection: close, error text as body.
func synthesizeError(statusCode int, message string) []byte {
	header := http.Header{
		"Content-Type": {"text/plain; charset=utf-8"},
		"Connection":   {"close"},
	}
	return httpmsg.EncodeSystemResponse(statusCode, header, []byte(message))
}

// badGateway synthesizes a 502 for an UpstreamError (spec.md §7).
func badGateway(err error) []byte {
	return synthesizeError(http.StatusBadGateway, err.Error())
}

// internalError synthesizes a 500 for a ParseError (spec.md §7).
func internalError(err error) []byte {
	return synthesizeError(http.StatusInternalServerError, err.Error())
}

// connectEstablished is the fixed success line spec.md §4.C and §4.D both
// specify for a successful CONNECT.
const connectEstablished = "HTTP/1.1 200 Connection Established\r\n\r\n"
