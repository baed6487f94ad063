package packets

import "io"

// FixedHeader is the fixed header present in every MQTT control packet:
// [PacketType + Flags (1 byte)][Remaining Length (1-4 bytes)].
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

// WriteTo writes the fixed header to w.
func (h *FixedHeader) WriteTo(w io.Writer) (int64, error) {
	firstByte := (h.PacketType << 4) | (h.Flags & 0x0F)

	// Writers that support WriteByte (bufio.Writer, net.Conn wrappers) skip
	// the small-slice allocation the fallback path needs.
	if bw, ok := w.(io.ByteWriter); ok {
		var total int64
		if err := bw.WriteByte(firstByte); err != nil {
			return total, err
		}
		total++

		x := h.RemainingLength
		for {
			b := byte(x % 128)
			x /= 128
			if x > 0 {
				b |= 128
			}
			if err := bw.WriteByte(b); err != nil {
				return total, err
			}
			total++
			if x == 0 {
				break
			}
		}
		return total, nil
	}

	var buf [5]byte
	n := len(h.appendBytes(buf[:0]))
	nw, err := w.Write(buf[:n])
	return int64(nw), err
}

// appendBytes appends the fixed header's wire encoding to dst and returns
// the extended slice, for callers building a whole packet in one buffer
// rather than writing it piecemeal to an io.Writer.
func (h *FixedHeader) appendBytes(dst []byte) []byte {
	dst = append(dst, (h.PacketType<<4)|(h.Flags&0x0F))
	return appendVarInt(dst, h.RemainingLength)
}
