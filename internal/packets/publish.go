package packets

import (
	"encoding/binary"
	"io"
)

// PublishPacket is an outbound MQTT PUBLISH, addressed to one subscriber's
// connection by the Response Router.
type PublishPacket struct {
	Dup    bool
	QoS    uint8
	Retain bool

	Topic    string
	PacketID uint16 // only present on the wire when QoS > 0

	Payload []byte

	Properties *Properties
	Version    uint8 // 4 for v3.1.1, 5 for v5.0
}

// Type returns the packet type.
func (p *PublishPacket) Type() uint8 {
	return PUBLISH
}

// Encode appends the PUBLISH packet's wire encoding to dst.
func (p *PublishPacket) Encode(dst []byte) ([]byte, error) {
	var propsBytes []byte
	if p.Version >= 5 {
		propsBytes = appendProperties(nil, p.Properties)
	}

	variableHeaderLen := 2 + len(p.Topic)
	if p.QoS > 0 {
		variableHeaderLen += 2
	}
	variableHeaderLen += len(propsBytes)

	remainingLength := variableHeaderLen + len(p.Payload)

	var flags uint8
	if p.Dup {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}

	header := FixedHeader{
		PacketType:      PUBLISH,
		Flags:           flags,
		RemainingLength: remainingLength,
	}
	dst = header.appendBytes(dst)

	dst = appendString(dst, p.Topic)
	if p.QoS > 0 {
		dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	}
	dst = append(dst, propsBytes...)
	dst = append(dst, p.Payload...)

	return dst, nil
}

// WriteTo writes the PUBLISH packet to w.
func (p *PublishPacket) WriteTo(w io.Writer) (int64, error) {
	data, err := p.Encode(make([]byte, 0, 2+len(p.Topic)+len(p.Payload)+16))
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}
