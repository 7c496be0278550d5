// Package mqttwire implements the wire format shared by all MQTT
// control packets: the basic data representations (fixed-width
// big-endian integers, variable byte integers, length-prefixed strings
// and binary data) and the fixed header that starts every packet.
//
// All readers and writers operate on plain io.Reader/io.Writer
// channels and never retain them between calls. Failures are either
// ErrMalformedPacket (the bytes arrived but are not valid) or a
// *TransportError carrying the channel's own error; see the error
// docs for the exact split.
package mqttwire

import (
	"encoding/binary"
	"io"
	"unicode/utf8"
)

const continuationBit = 0x80

// MaxVariableByteInteger is the largest value representable by the
// variable byte integer encoding (four bytes of seven data bits each).
const MaxVariableByteInteger = 268435455

func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readError(err)
	}
	return buf[0], nil
}

func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readError(err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readError(err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadVariableByteInteger decodes the 1-4 byte length encoding of
// MQTT 1.5.5: base 128 digits, least significant first, top bit of
// each byte flagging a following digit. An encoding that would need a
// fifth byte fails with ErrMalformedPacket before more input is
// consumed, even if the value so far is in range.
func ReadVariableByteInteger(r io.Reader) (uint32, error) {
	var buf [1]byte
	multiplier, value := uint32(1), uint32(0)

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, readError(err)
		}
		value += uint32(buf[0]&^continuationBit) * multiplier

		if buf[0]&continuationBit == 0 {
			return value, nil
		}

		multiplier *= 128
		if multiplier > 128*128*128 {
			return 0, ErrMalformedPacket
		}
	}
}

func WriteUint8(w io.Writer, v uint8) error {
	if _, err := w.Write([]byte{v}); err != nil {
		return writeError(err)
	}
	return nil
}

func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return writeError(err)
	}
	return nil
}

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return writeError(err)
	}
	return nil
}

// WriteVariableByteInteger emits the minimal encoding of v. The caller
// keeps v within MaxVariableByteInteger; larger values are not part of
// the wire format and this function does not police them.
func WriteVariableByteInteger(w io.Writer, v uint32) error {
	var buf [1]byte
	for {
		buf[0] = byte(v % 128)
		v /= 128
		if v > 0 {
			buf[0] |= continuationBit
		}
		if _, err := w.Write(buf[:]); err != nil {
			return writeError(err)
		}
		if v == 0 {
			return nil
		}
	}
}

// ReadBinary reads a uint16 length-prefixed byte field (MQTT 1.5.6).
func ReadBinary(r io.Reader) ([]byte, error) {
	n, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, readError(err)
	}
	return b, nil
}

func WriteBinary(w io.Writer, b []byte) error {
	if err := WriteUint16(w, uint16(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return writeError(err)
	}
	return nil
}

// ReadString reads a uint16 length-prefixed UTF-8 string (MQTT 1.5.4).
// Data that is not valid UTF-8, or that contains U+0000 or a UTF-16
// surrogate code point, fails with ErrMalformedPacket.
func ReadString(r io.Reader) (string, error) {
	b, err := ReadBinary(r)
	if err != nil {
		return "", err
	}
	if !validString(b) {
		return "", ErrMalformedPacket
	}
	return string(b), nil
}

func WriteString(w io.Writer, s string) error {
	return WriteBinary(w, []byte(s))
}

// [MQTT-1.5.4-1] [MQTT-1.5.4-2]
func validString(b []byte) bool {
	for i := 0; i < len(b); {
		if b[i] == 0 {
			return false
		}
		if b[i]&0x80 == 0 {
			i++
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 { // also covers surrogates
			return false
		}
		i += size
	}
	return true
}
