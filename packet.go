package mqttwire

import "io"

// PacketType identifies a control packet. It is the high nibble of the
// control byte, so all sixteen code points are representable and the
// mapping to and from bits is total.
type PacketType uint8

const (
	Reserved PacketType = iota
	Connect
	ConnAck
	Publish
	PubAck
	PubRec
	PubRel
	PubComp
	Subscribe
	SubAck
	Unsubscribe
	UnsubAck
	PingReq
	PingResp
	Disconnect
	Auth
)

var packetTypeNames = [16]string{
	"RESERVED", "CONNECT", "CONNACK", "PUBLISH",
	"PUBACK", "PUBREC", "PUBREL", "PUBCOMP",
	"SUBSCRIBE", "SUBACK", "UNSUBSCRIBE", "UNSUBACK",
	"PINGREQ", "PINGRESP", "DISCONNECT", "AUTH",
}

// PacketTypeFromBits returns the packet type encoded in the low nibble
// of b. Bits above the low nibble are discarded.
func PacketTypeFromBits(b uint8) PacketType {
	return PacketType(b & 0x0F)
}

// Bits returns the raw 4-bit value of t.
func (t PacketType) Bits() uint8 {
	return uint8(t) & 0x0F
}

func (t PacketType) String() string {
	return packetTypeNames[t.Bits()]
}

// FixedHeader is the 2-5 byte header that starts every control packet:
// one control byte packing the packet type and flags, then the length
// of everything that follows as a variable byte integer. Two headers
// with equal fields are interchangeable.
type FixedHeader struct {
	Type            PacketType
	Flags           uint8 // low nibble of the control byte, verbatim
	RemainingLength uint32
}

// ReadFixedHeader reads one fixed header from r. Any control byte is
// accepted; validating flags against the packet type is the packet
// layer's job. Errors from the primitives propagate unchanged.
func ReadFixedHeader(r io.Reader) (FixedHeader, error) {
	var h FixedHeader

	controlByte, err := ReadUint8(r)
	if err != nil {
		return h, err
	}
	h.Type = PacketTypeFromBits(controlByte >> 4)
	h.Flags = controlByte & 0x0F

	h.RemainingLength, err = ReadVariableByteInteger(r)
	return h, err
}

// Write serializes h to w.
func (h FixedHeader) Write(w io.Writer) error {
	controlByte := h.Type.Bits()<<4 | h.Flags&0x0F
	if err := WriteUint8(w, controlByte); err != nil {
		return err
	}
	return WriteVariableByteInteger(w, h.RemainingLength)
}
