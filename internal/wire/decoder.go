package wire

import "encoding/binary"

// Decoder is a stateful, single-producer single-consumer frame extractor.
// It is fed byte chunks as they arrive from a socket (see linkmgr's read
// pump, grounded on the teacher's channelHandler.readFromWAN loop) and
// yields every complete frame the accumulated buffer contains.
//
// Concurrent calls to Push on the same Decoder are not supported, matching
// spec.md §4.A's single-producer, single-consumer requirement.
type Decoder struct {
	buf         []byte
	closed      bool
	maxFrameLen int
}

// NewDecoder creates a Decoder that rejects any frame whose advertised
// payload length exceeds maxFrameLen. A maxFrameLen of 0 selects
// DefaultMaxFrameSize.
func NewDecoder(maxFrameLen int) *Decoder {
	if maxFrameLen <= 0 {
		maxFrameLen = DefaultMaxFrameSize
	}
	return &Decoder{maxFrameLen: maxFrameLen}
}

// Push appends chunk to the internal buffer and extracts as many complete
// frames as are now available. It never blocks and never returns a
// partially-filled Frame: if fewer bytes are buffered than the next frame
// needs, it returns the frames it could extract (possibly none) with a
// nil error and waits for the next Push.
//
// Pushing into a closed Decoder returns ErrDecoderClosed. An oversize
// frame header returns ErrFrameTooLarge, a fatal ProtocolError condition;
// the Decoder should not be reused afterward.
func (d *Decoder) Push(chunk []byte) ([]Frame, error) {
	if d.closed {
		return nil, ErrDecoderClosed
	}
	if len(chunk) > 0 {
		d.buf = append(d.buf, chunk...)
	}

	var frames []Frame
	for {
		if len(d.buf) < HeaderLen {
			break
		}
		length := binary.BigEndian.Uint32(d.buf[0:4])
		if int(length) > d.maxFrameLen {
			return frames, ErrFrameTooLarge
		}
		total := HeaderLen + int(length)
		if len(d.buf) < total {
			break
		}
		typ := Type(d.buf[4])
		payload := make([]byte, length)
		copy(payload, d.buf[HeaderLen:total])
		frames = append(frames, Frame{Type: typ, Payload: payload})
		d.buf = d.buf[total:]
	}

	// Compact so a long-lived decoder doesn't retain the whole history
	// of the underlying array via slicing.
	if len(d.buf) == 0 {
		d.buf = nil
	} else if cap(d.buf) > 4*len(d.buf) {
		compacted := make([]byte, len(d.buf))
		copy(compacted, d.buf)
		d.buf = compacted
	}

	return frames, nil
}

// Close drops any buffered partial frame and refuses further input.
func (d *Decoder) Close() {
	d.buf = nil
	d.closed = true
}
