package offshoredispatch

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmptrader/shiplink/internal/linkmgr"
	"github.com/jmptrader/shiplink/internal/logging"
	"github.com/jmptrader/shiplink/internal/wire"
	"github.com/sirupsen/logrus"
)

func testLogger() logging.Logger {
	return logging.New("test", logrus.ErrorLevel)
}

// shipSide wraps the ship-facing end of an in-memory pipe so tests can
// send REQUEST frames and read back RESPONSE frames the way the ship's
// scheduler would.
type shipSide struct {
	conn    net.Conn
	decoder *wire.Decoder
}

func newDispatcherUnderTest(t *testing.T, dialer Dialer) (*Dispatcher, *shipSide) {
	t.Helper()
	shipConn, offshoreConn := net.Pipe()
	link := linkmgr.New(offshoreConn, testLogger())
	d := New(link, testLogger(), dialer)
	go d.Run()
	return d, &shipSide{conn: shipConn, decoder: wire.NewDecoder(0)}
}

func (s *shipSide) sendRequest(t *testing.T, payload []byte) {
	t.Helper()
	frame, err := wire.Encode(wire.Request, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (s *shipSide) nextResponse(t *testing.T, timeout time.Duration) wire.Frame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	s.conn.SetReadDeadline(deadline)
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			frames, decErr := s.decoder.Push(buf[:n])
			if decErr != nil {
				t.Fatalf("decode: %v", decErr)
			}
			if len(frames) > 0 {
				return frames[0]
			}
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}
}

func TestDispatcherBasicGET(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer origin.Close()

	_, ship := newDispatcherUnderTest(t, nil)

	reqBytes := fmt.Sprintf("GET %s/ HTTP/1.1\r\nHost: %s\r\n\r\n", origin.URL, origin.Listener.Addr().String())
	ship.sendRequest(t, []byte(reqBytes))

	resp := ship.nextResponse(t, 2*time.Second)
	if resp.Type != wire.Response {
		t.Fatalf("expected RESPONSE frame, got %s", resp.Type)
	}
	s := string(resp.Payload)
	if !strings.HasPrefix(s, "HTTP/1.1 200") {
		t.Fatalf("expected 200 status line, got %q", s)
	}
	if !strings.Contains(s, "Content-Length: 5") {
		t.Fatalf("expected Content-Length: 5, got %q", s)
	}
	if !strings.HasSuffix(s, "hello") {
		t.Fatalf("expected body 'hello', got %q", s)
	}
}

func TestDispatcherUpstreamFailure(t *testing.T) {
	_, ship := newDispatcherUnderTest(t, nil)

	// No listener on this port: connection refused.
	reqBytes := "GET http://127.0.0.1:1/ HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n"
	ship.sendRequest(t, []byte(reqBytes))

	resp := ship.nextResponse(t, 2*time.Second)
	s := string(resp.Payload)
	if !strings.HasPrefix(s, "HTTP/1.1 502") {
		t.Fatalf("expected 502, got %q", s)
	}
	if !strings.Contains(s, "Content-Type: text/plain; charset=utf-8") {
		t.Fatalf("expected text/plain content type, got %q", s)
	}
	if !strings.Contains(s, "Connection: close") {
		t.Fatalf("expected Connection: close, got %q", s)
	}
}

// stubDialer returns a fixed connection for any Dial call, simulating a
// CONNECT target per spec.md §8 scenario 3.
type stubDialer struct {
	conn net.Conn
	err  error
}

func (s stubDialer) Dial(network, address string) (net.Conn, error) {
	return s.conn, s.err
}

func TestDispatcherConnectTunnelEchoesAndResumes(t *testing.T) {
	upstreamOffshoreEnd, upstreamTestEnd := net.Pipe()
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := upstreamTestEnd.Read(buf)
			if n > 0 {
				upstreamTestEnd.Write(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	d, ship := newDispatcherUnderTest(t, stubDialer{conn: upstreamOffshoreEnd})

	ship.sendRequest(t, []byte("CONNECT example.invalid:443 HTTP/1.1\r\n\r\n"))
	resp := ship.nextResponse(t, 2*time.Second)
	if !strings.HasPrefix(string(resp.Payload), "HTTP/1.1 200") {
		t.Fatalf("expected 200 Connection Established, got %q", resp.Payload)
	}

	d.mu.Lock()
	inTunnel := d.inTunnel
	d.mu.Unlock()
	if !inTunnel {
		t.Fatalf("expected dispatcher to be in tunnel mode")
	}

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	ship.sendRequest(t, payload)
	echoed := ship.nextResponse(t, 2*time.Second)
	if string(echoed.Payload) != string(payload) {
		t.Fatalf("expected echoed bytes %x, got %x", payload, echoed.Payload)
	}

	upstreamTestEnd.Close()
	time.Sleep(50 * time.Millisecond)

	d.mu.Lock()
	inTunnel = d.inTunnel
	d.mu.Unlock()
	if inTunnel {
		t.Fatalf("expected dispatcher to leave tunnel mode after upstream close")
	}

	// spec.md §8 scenario 3: once the tunnel is torn down, the same link
	// must go on serving ordinary HTTP requests.
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("after tunnel"))
	}))
	defer origin.Close()

	followUp := fmt.Sprintf("GET %s/ HTTP/1.1\r\nHost: %s\r\n\r\n", origin.URL, origin.Listener.Addr().String())
	ship.sendRequest(t, []byte(followUp))
	resp = ship.nextResponse(t, 2*time.Second)
	if !strings.HasPrefix(string(resp.Payload), "HTTP/1.1 200") {
		t.Fatalf("expected 200 for follow-up request, got %q", resp.Payload)
	}
	if !strings.HasSuffix(string(resp.Payload), "after tunnel") {
		t.Fatalf("expected body 'after tunnel', got %q", resp.Payload)
	}
}
