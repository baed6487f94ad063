package packets

// appendString appends an MQTT length-prefixed UTF-8 string (2-byte
// big-endian length, then the bytes) to dst.
func appendString(dst []byte, s string) []byte {
	length := uint16(len(s))
	dst = append(dst, byte(length>>8), byte(length))
	return append(dst, s...)
}

// appendBinary appends MQTT length-prefixed binary data to dst.
func appendBinary(dst []byte, data []byte) []byte {
	length := uint16(len(data))
	dst = append(dst, byte(length>>8), byte(length))
	return append(dst, data...)
}
