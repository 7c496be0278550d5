package mqttwire

import (
	"errors"
	"io"
)

// ErrMalformedPacket is returned when the byte stream was delivered by
// the transport but does not conform to the wire format: a field cut
// short by end of data, or a variable byte integer encoded with more
// than four bytes. It is deterministic for a given byte sequence.
var ErrMalformedPacket = errors.New("malformed packet")

// TransportError reports a failure of the underlying channel unrelated
// to the validity of the bytes, e.g. a reset connection or a full
// write buffer. The channel's native error is preserved in Err and
// exposed through Unwrap.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// A short read means the peer stopped mid-field, which is a wire
// format problem, not a channel one.
func readError(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrMalformedPacket
	}
	return &TransportError{Err: err}
}

// Writes have no malformed condition; every input is representable.
func writeError(err error) error {
	return &TransportError{Err: err}
}
