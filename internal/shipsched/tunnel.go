package shipsched

import (
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/jmptrader/shiplink/internal/linkmgr"
	"github.com/jmptrader/shiplink/internal/wire"
)

// handleConnect implements spec.md §4.C's tunnel mode entry, bidirectional
// forwarding, and exit. It runs entirely outside the FIFO queue but under
// linkMu, so it is the link's sole owner for the duration of the tunnel —
// which is exactly how "no message-mode transaction may start while
// tunnel mode is active" (spec.md §3) is enforced.
func (s *Scheduler) handleConnect(w http.ResponseWriter, r *http.Request) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "CONNECT requires a hijackable connection", http.StatusInternalServerError)
		return
	}
	clientConn, buf, err := hijacker.Hijack()
	if err != nil {
		http.Error(w, "hijack failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer clientConn.Close()

	s.linkMu.Lock()
	defer s.linkMu.Unlock()

	s.setTunnel(true)
	defer s.setTunnel(false)

	link, err := s.link.WaitForLink(r.Context(), s.waitTimeout)
	if err != nil {
		writeRaw(clientConn, "HTTP/1.1 502 Bad Gateway\r\nConnection: close\r\n\r\n")
		return
	}

	connectLine := "CONNECT " + r.URL.Host + " HTTP/1.1\r\n\r\n"
	if r.URL.Host == "" {
		connectLine = "CONNECT " + r.Host + " HTTP/1.1\r\n\r\n"
	}
	if err := link.Send(wire.Request, []byte(connectLine)); err != nil {
		writeRaw(clientConn, "HTTP/1.1 502 Bad Gateway\r\nConnection: close\r\n\r\n")
		return
	}

	frame, ok := <-link.Frames()
	if !ok {
		writeRaw(clientConn, "HTTP/1.1 502 Bad Gateway\r\nConnection: close\r\n\r\n")
		return
	}
	if !isHTTP200(frame.Payload) {
		clientConn.Write(frame.Payload)
		return
	}

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	// Forward any bytes the HTTP server already buffered past the
	// CONNECT request line/headers (spec.md §4.C step 4's "head").
	if buf != nil && buf.Reader != nil {
		if n := buf.Reader.Buffered(); n > 0 {
			head := make([]byte, n)
			io.ReadFull(buf.Reader, head)
			if err := link.Send(wire.Request, head); err != nil {
				return
			}
		}
	}

	s.forwardTunnel(clientConn, link)
}

// isHTTP200 reports whether payload's status line is "HTTP/1.x 200 ...",
// per spec.md §4.C step 3.
func isHTTP200(payload []byte) bool {
	line := payload
	if idx := indexCRLF(payload); idx >= 0 {
		line = payload[:idx]
	}
	s := string(line)
	return strings.HasPrefix(s, "HTTP/1.0 200") || strings.HasPrefix(s, "HTTP/1.1 200")
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func writeRaw(conn net.Conn, s string) {
	conn.Write([]byte(s))
}

// forwardTunnel implements spec.md §4.C's bidirectional forwarding: every
// chunk from the client becomes a REQUEST frame, and every RESPONSE frame
// is written verbatim to the client, until either side ends.
//
// link.Frames() is the same channel Scheduler.process() reads from for
// every later FIFO transaction, so the goroutine below must stop pulling
// from it before forwardTunnel returns — otherwise, once handleConnect's
// deferred linkMu.Unlock() lets the FIFO resume, this goroutine can still
// win the race for the next transaction's RESPONSE frame and silently
// drop it (a write to the already-closed clientConn), leaving that
// transaction's process() blocked on <-link.Frames() forever. stopReading
// makes it hand back the channel immediately instead of only on its next
// received-and-discarded frame.
func (s *Scheduler) forwardTunnel(clientConn net.Conn, link *linkmgr.Link) {
	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		buf := make([]byte, 32*1024)
		for {
			n, err := clientConn.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if sendErr := link.Send(wire.Request, chunk); sendErr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	stopReading := make(chan struct{})
	linkDone := make(chan struct{})
	go func() {
		defer close(linkDone)
		for {
			select {
			case frame, ok := <-link.Frames():
				if !ok {
					return
				}
				if frame.Type != wire.Response {
					continue
				}
				if _, err := clientConn.Write(frame.Payload); err != nil {
					return
				}
			case <-stopReading:
				return
			}
		}
	}()

	// Whichever side ends first, close the client connection so the other
	// goroutine's blocking call unblocks: a closed clientConn makes any
	// pending or future Write fail immediately, and closing stopReading
	// makes the link-reader's select return immediately even with no
	// frame pending. Only then wait for both goroutines to actually exit,
	// so linkMu (still held by the caller) isn't released while either one
	// might still touch the link or the client connection.
	select {
	case <-clientDone:
	case <-linkDone:
	}
	clientConn.Close()
	close(stopReading)
	<-clientDone
	<-linkDone
}
