package httpmsg

import (
	"net/http"
	"strings"
	"testing"
)

func TestEncodeRequestStripsHopByHop(t *testing.T) {
	req, body, err := ReadRequest(strings.NewReader(
		"GET http://example.invalid/ HTTP/1.1\r\n" +
			"Host: example.invalid\r\n" +
			"Proxy-Connection: keep-alive\r\n" +
			"Connection: keep-alive\r\n\r\n"))
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("expected empty body, got %d bytes", len(body))
	}

	encoded := EncodeRequest(req, nil)
	s := string(encoded)
	if strings.Contains(s, "Proxy-Connection") {
		t.Errorf("expected Proxy-Connection stripped, got %q", s)
	}
	if strings.Contains(s, "Connection:") {
		t.Errorf("expected Connection stripped, got %q", s)
	}
	if !strings.HasPrefix(s, "GET / HTTP/1.1\r\n") && !strings.HasPrefix(s, "GET http://example.invalid/ HTTP/1.1\r\n") {
		t.Errorf("unexpected request line: %q", s)
	}
}

func TestEncodeResponseSetsContentLength(t *testing.T) {
	body := []byte("hello")
	encoded := EncodeResponse(http.StatusOK, http.Header{"X-Test": []string{"1"}}, body)
	s := string(encoded)
	if !strings.Contains(s, "Content-Length: 5") {
		t.Errorf("expected Content-Length: 5, got %q", s)
	}
	if strings.Contains(s, "Transfer-Encoding") {
		t.Errorf("must never emit Transfer-Encoding, got %q", s)
	}
	if !strings.HasSuffix(s, "hello") {
		t.Errorf("expected body at end, got %q", s)
	}
}

func TestReadResponseRoundTrip(t *testing.T) {
	req, _ := http.NewRequest("GET", "http://example.invalid/", nil)
	raw := EncodeResponse(http.StatusOK, http.Header{"Content-Type": []string{"text/plain"}}, []byte("hello"))
	resp, body, err := ReadResponse(strings.NewReader(string(raw)), req)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "hello" {
		t.Errorf("expected body 'hello', got %q", body)
	}
}

func TestParseConnectTarget(t *testing.T) {
	cases := []struct {
		in, wantHost, wantPort string
	}{
		{"example.invalid:443", "example.invalid", "443"},
		{"example.invalid", "example.invalid", "443"},
		{"example.invalid:8443", "example.invalid", "8443"},
	}
	for _, c := range cases {
		host, port := ParseConnectTarget(c.in)
		if host != c.wantHost || port != c.wantPort {
			t.Errorf("ParseConnectTarget(%q) = (%q, %q), want (%q, %q)", c.in, host, port, c.wantHost, c.wantPort)
		}
	}
}
