package wire

import "errors"

// ErrInvalidType is returned by Encode when asked to frame an
// unrecognized message type.
var ErrInvalidType = errors.New("wire: invalid frame type")

// ErrDecoderClosed is returned by Decoder.Push once the decoder has been
// closed; per spec.md §4.A, close() refuses further input.
var ErrDecoderClosed = errors.New("wire: decoder closed")

// ErrFrameTooLarge is a ProtocolError: the header advertised a payload
// length beyond the decoder's configured maximum.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// ErrLinkClosed indicates the underlying socket for a link closed or
// errored; per spec.md §7, it fails all pending and in-flight sends.
var ErrLinkClosed = errors.New("wire: link closed")
