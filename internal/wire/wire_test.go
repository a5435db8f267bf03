package wire

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
)

func TestEncodeInvalidType(t *testing.T) {
	if _, err := Encode(Type(2), nil); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestRoundTripSingleChunk(t *testing.T) {
	for _, typ := range []Type{Request, Response} {
		for _, payload := range [][]byte{nil, []byte("x"), bytes.Repeat([]byte{0xAB}, 65537)} {
			frame, err := Encode(typ, payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			d := NewDecoder(0)
			got, err := d.Push(frame)
			if err != nil {
				t.Fatalf("Push: %v", err)
			}
			want := []Frame{{Type: typ, Payload: payload}}
			if !framesEqual(got, want) {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	}
}

func TestConcatenation(t *testing.T) {
	a, _ := Encode(Request, []byte("A"))
	b, _ := Encode(Response, []byte("B"))
	d := NewDecoder(0)
	got, err := d.Push(append(a, b...))
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	want := []Frame{{Type: Request, Payload: []byte("A")}, {Type: Response, Payload: []byte("B")}}
	if !framesEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPartialFrameSafety(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 100)
	frame, _ := Encode(Request, payload)
	for k := 0; k < len(frame); k++ {
		d := NewDecoder(0)
		got, err := d.Push(frame[:k])
		if err != nil {
			t.Fatalf("Push(%d bytes): %v", k, err)
		}
		if len(got) != 0 {
			t.Fatalf("Push(%d bytes) yielded %d frames, want 0", k, len(got))
		}
	}
}

func TestChunkInvariance(t *testing.T) {
	messages := []Frame{
		{Type: Request, Payload: []byte{}},
		{Type: Response, Payload: []byte{0x01}},
		{Type: Request, Payload: bytes.Repeat([]byte{0x77}, 65537)},
	}
	var full []byte
	for _, m := range messages {
		f, _ := Encode(m.Type, m.Payload)
		full = append(full, f...)
	}

	// Feed one byte at a time.
	d := NewDecoder(0)
	var got []Frame
	for i := 0; i < len(full); i++ {
		frames, err := d.Push(full[i : i+1])
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		got = append(got, frames...)
	}
	if !framesEqual(got, messages) {
		t.Fatalf("byte-at-a-time: got %v, want %v", summarize(got), summarize(messages))
	}

	// Feed in three arbitrary chunks.
	d2 := NewDecoder(0)
	thirds := len(full) / 3
	var got2 []Frame
	for _, chunk := range [][]byte{full[:thirds], full[thirds : 2*thirds], full[2*thirds:]} {
		frames, err := d2.Push(chunk)
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		got2 = append(got2, frames...)
	}
	if !framesEqual(got2, messages) {
		t.Fatalf("thirds: got %v, want %v", summarize(got2), summarize(messages))
	}
}

func TestOversizeFrameIsProtocolError(t *testing.T) {
	frame, _ := Encode(Request, make([]byte, 100))
	d := NewDecoder(10)
	if _, err := d.Push(frame); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecoderCloseRefusesInput(t *testing.T) {
	d := NewDecoder(0)
	d.Close()
	if _, err := d.Push([]byte("x")); !errors.Is(err, ErrDecoderClosed) {
		t.Fatalf("expected ErrDecoderClosed, got %v", err)
	}
}

func TestSenderSerializesConcurrentSends(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := NewSender(server)
	defer s.Close()

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Send(Request, bytes.Repeat([]byte{byte(i)}, 10))
		}(i)
	}

	d := NewDecoder(0)
	received := make([]Frame, 0, n)
	buf := make([]byte, 4096)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for len(received) < n {
			nRead, err := client.Read(buf)
			if nRead > 0 {
				frames, decErr := d.Push(buf[:nRead])
				if decErr != nil {
					t.Errorf("decode error: %v", decErr)
					return
				}
				received = append(received, frames...)
			}
			if err != nil {
				return
			}
		}
	}()

	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	<-readDone

	if len(received) != n {
		t.Fatalf("expected %d frames, got %d", n, len(received))
	}
	for _, f := range received {
		if len(f.Payload) != 10 {
			t.Fatalf("frame payload corrupted/interleaved: len=%d", len(f.Payload))
		}
		first := f.Payload[0]
		for _, b := range f.Payload {
			if b != first {
				t.Fatalf("frame payload bytes interleaved: %v", f.Payload)
			}
		}
	}
}

func TestSenderFailsOnClose(t *testing.T) {
	server, client := net.Pipe()
	client.Close()
	s := NewSender(server)
	// Give the writer goroutine a chance to observe the closed pipe.
	for i := 0; i < 100; i++ {
		if err := s.Send(Request, []byte("x")); err != nil {
			return
		}
	}
	t.Fatal("expected send to eventually fail after peer closed")
}

func TestSenderCloseFailsSubsequentSends(t *testing.T) {
	var buf discardWriteCloser
	s := NewSender(&buf)
	s.Close()
	if err := s.Send(Request, nil); !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("expected ErrLinkClosed, got %v", err)
	}
}

type discardWriteCloser struct{ bytes.Buffer }

func (d *discardWriteCloser) Close() error { return nil }

func framesEqual(a, b []Frame) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
		if !bytes.Equal(a[i].Payload, b[i].Payload) {
			return false
		}
	}
	return true
}

func summarize(fs []Frame) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Type.String() + "/" + itoa(len(f.Payload))
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
