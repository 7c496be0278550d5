package mqttwire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

var errNoSpace = errors.New("no space left on device")

// capWriter accepts at most cap bytes, then fails like a full socket
// buffer would.
type capWriter struct {
	buf []byte
	cap int
}

func (w *capWriter) Write(p []byte) (int, error) {
	if len(w.buf)+len(p) > w.cap {
		return 0, errNoSpace
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func TestReadFixedWidth(t *testing.T) {
	t.Parallel()

	v8, err := ReadUint8(bytes.NewReader([]byte{0x42}))
	if err != nil || v8 != 0x42 {
		t.Fatal(v8, err)
	}

	v16, err := ReadUint16(bytes.NewReader([]byte{0x12, 0x34}))
	if err != nil || v16 != 0x1234 {
		t.Fatal(v16, err)
	}

	v32, err := ReadUint32(bytes.NewReader([]byte{0x12, 0x34, 0x56, 0x78}))
	if err != nil || v32 != 0x12345678 {
		t.Fatal(v32, err)
	}
}

func TestReadFixedWidthShort(t *testing.T) {
	t.Parallel()

	if _, err := ReadUint8(bytes.NewReader(nil)); err != ErrMalformedPacket {
		t.Fatal(err)
	}
	if _, err := ReadUint16(bytes.NewReader([]byte{0x12})); err != ErrMalformedPacket {
		t.Fatal(err)
	}
	if _, err := ReadUint32(bytes.NewReader([]byte{0x12, 0x34, 0x56})); err != ErrMalformedPacket {
		t.Fatal(err)
	}
}

func TestWriteFixedWidth(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	if err := WriteUint8(&b, 0x42); err != nil {
		t.Fatal(err)
	}
	if err := WriteUint16(&b, 0x1234); err != nil {
		t.Fatal(err)
	}
	if err := WriteUint32(&b, 0x12345678); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes(), []byte{0x42, 0x12, 0x34, 0x12, 0x34, 0x56, 0x78}) {
		t.Fatal(b.Bytes())
	}
}

func TestWriteFixedWidthNoCapacity(t *testing.T) {
	t.Parallel()

	err := WriteUint32(&capWriter{cap: 3}, 0x12345678)
	te, ok := err.(*TransportError)
	if !ok {
		t.Fatal(err)
	}
	if te.Unwrap() != errNoSpace {
		t.Fatal(te.Unwrap())
	}
	if errors.Is(err, ErrMalformedPacket) {
		t.Fatal("write failure must not be a malformed packet")
	}
}

func TestVariableByteIntegerWidths(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		v uint32
		e []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{268435455, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	} {
		var b bytes.Buffer
		if err := WriteVariableByteInteger(&b, tc.v); err != nil {
			t.Fatal(tc.v, err)
		}
		if !bytes.Equal(b.Bytes(), tc.e) {
			t.Fatal(tc.v, b.Bytes())
		}
	}
}

func TestVariableByteIntegerRoundTrip(t *testing.T) {
	t.Parallel()

	for _, v := range []uint32{
		0, 1, 127, 128, 255, 256, 16383, 16384, 32767, 65535,
		2097151, 2097152, 134217727, MaxVariableByteInteger,
	} {
		var b bytes.Buffer
		if err := WriteVariableByteInteger(&b, v); err != nil {
			t.Fatal(v, err)
		}
		got, err := ReadVariableByteInteger(&b)
		if err != nil {
			t.Fatal(v, err)
		}
		if got != v {
			t.Fatal(v, got)
		}
	}
}

func TestReadVariableByteIntegerTooLong(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x01})
	if _, err := ReadVariableByteInteger(r); err != ErrMalformedPacket {
		t.Fatal(err)
	}
	// The fifth byte must be left unread.
	if r.Len() != 1 {
		t.Fatal(r.Len())
	}
}

func TestReadVariableByteIntegerShort(t *testing.T) {
	t.Parallel()

	for _, in := range [][]byte{
		nil,
		{0x80},
		{0x80, 0x80},
		{0xFF, 0xFF, 0xFF},
	} {
		if _, err := ReadVariableByteInteger(bytes.NewReader(in)); err != ErrMalformedPacket {
			t.Fatal(in, err)
		}
	}
}

func TestReadVariableByteIntegerTransport(t *testing.T) {
	t.Parallel()

	broken := io.MultiReader(bytes.NewReader([]byte{0x80}), &brokenReader{})
	_, err := ReadVariableByteInteger(broken)
	if _, ok := err.(*TransportError); !ok {
		t.Fatal(err)
	}
}

type brokenReader struct{}

func (*brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "a/b/c", "temperature/living room", "héllo", "日本語"} {
		var b bytes.Buffer
		if err := WriteString(&b, s); err != nil {
			t.Fatal(s, err)
		}
		got, err := ReadString(&b)
		if err != nil {
			t.Fatal(s, err)
		}
		if got != s {
			t.Fatal(s, got)
		}
	}
}

func TestReadStringMalformed(t *testing.T) {
	t.Parallel()

	for _, in := range [][]byte{
		{0x00},                   // truncated length
		{0x00, 0x05, 'a'},        // data shorter than length
		{0x00, 0x01, 0x00},       // U+0000
		{0x00, 0x02, 0xC3, 0x28}, // invalid UTF-8
		{0x00, 0x03, 0xED, 0xA0, 0x80}, // UTF-16 surrogate U+D800
	} {
		if _, err := ReadString(bytes.NewReader(in)); err != ErrMalformedPacket {
			t.Fatal(in, err)
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	for _, in := range [][]byte{{}, {0x00}, {0xDE, 0xAD, 0xBE, 0xEF}} {
		var b bytes.Buffer
		if err := WriteBinary(&b, in); err != nil {
			t.Fatal(in, err)
		}
		got, err := ReadBinary(&b)
		if err != nil {
			t.Fatal(in, err)
		}
		if !bytes.Equal(got, in) {
			t.Fatal(in, got)
		}
	}
}
