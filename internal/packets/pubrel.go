package packets

import (
	"encoding/binary"
	"io"
)

// PubrelPacket is the PUBREL sent after a matching PUBREC, step two of the
// QoS 2 delivery handshake.
type PubrelPacket struct {
	PacketID uint16

	// MQTT v5.0 fields
	ReasonCode uint8       // v5.0
	Properties *Properties // v5.0
	Version    uint8       // 4 or 5
}

// Type returns the packet type.
func (p *PubrelPacket) Type() uint8 {
	return PUBREL
}

// WriteTo writes the PUBREL packet to w.
func (p *PubrelPacket) WriteTo(w io.Writer) (int64, error) {
	var total int64

	var propsBytes []byte
	hasV5Fields := p.Version >= 5 && (p.ReasonCode != 0 || p.Properties != nil)
	if hasV5Fields {
		propsBytes = encodeProperties(p.Properties)
	}

	variableHeaderLen := 2
	if hasV5Fields {
		variableHeaderLen += 1 + len(propsBytes) // ReasonCode + Props
	}

	// PUBREL has fixed header flags = 0x02 (bit 1 set).
	header := &FixedHeader{
		PacketType:      PUBREL,
		Flags:           0x02,
		RemainingLength: variableHeaderLen,
	}
	hN, err := header.WriteTo(w)
	total += hN
	if err != nil {
		return total, err
	}

	var packetIDBytes [2]byte
	binary.BigEndian.PutUint16(packetIDBytes[:], p.PacketID)
	n, err := w.Write(packetIDBytes[:])
	total += int64(n)
	if err != nil {
		return total, err
	}

	if hasV5Fields {
		if err := binary.Write(w, binary.BigEndian, p.ReasonCode); err != nil {
			return total, err
		}
		total++

		n, err = w.Write(propsBytes)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
