package packets

import "encoding/binary"

// Property IDs this codec emits, from the MQTT v5.0 spec's property table.
const (
	propMessageExpiryInterval  uint8 = 0x02
	propContentType            uint8 = 0x03
	propResponseTopic          uint8 = 0x08
	propCorrelationData        uint8 = 0x09
	propSubscriptionIdentifier uint8 = 0x0B
	propUserProperty           uint8 = 0x26
)

// Presence flags for the fixed-value properties on Properties. The
// variable-length ones (CorrelationData, SubscriptionIdentifier,
// UserProperties) need no flag; they are emitted whenever non-empty.
const (
	PresContentType           uint32 = 1 << 0
	PresResponseTopic         uint32 = 1 << 1
	PresMessageExpiryInterval uint32 = 1 << 2
)

// UserProperty is an MQTT v5 user-property key-value pair.
type UserProperty struct {
	Key   string
	Value string
}

// Properties holds the MQTT v5 PUBLISH properties the dispatcher builds:
// content metadata forwarded from the source Message, the subscription
// identifier the subscriber registered at SUBSCRIBE time, and the
// shared-subscription forwarding marker added as a user property.
type Properties struct {
	Presence               uint32
	MessageExpiryInterval  uint32
	ContentType            string
	ResponseTopic          string
	CorrelationData        []byte
	SubscriptionIdentifier []int
	UserProperties         []UserProperty
}

// encodeProperties serializes p into the MQTT v5 Properties section
// (length-prefixed), returning nil-Properties as a zero-length section.
func encodeProperties(p *Properties) []byte {
	if p == nil {
		return []byte{0x00}
	}
	return appendProperties(make([]byte, 0, 64), p)
}

// appendProperties appends the serialized Properties section to dst.
func appendProperties(dst []byte, p *Properties) []byte {
	if p == nil {
		return append(dst, 0x00)
	}

	startLen := len(dst)
	dst = append(dst, 0) // optimistic 1-byte length, patched below
	propsStart := len(dst)

	if p.Presence&PresMessageExpiryInterval != 0 {
		dst = append(dst, propMessageExpiryInterval)
		dst = binary.BigEndian.AppendUint32(dst, p.MessageExpiryInterval)
	}
	if p.Presence&PresContentType != 0 {
		dst = append(dst, propContentType)
		dst = appendString(dst, p.ContentType)
	}
	if p.Presence&PresResponseTopic != 0 {
		dst = append(dst, propResponseTopic)
		dst = appendString(dst, p.ResponseTopic)
	}
	if len(p.CorrelationData) > 0 {
		dst = append(dst, propCorrelationData)
		dst = appendBinary(dst, p.CorrelationData)
	}
	for _, id := range p.SubscriptionIdentifier {
		dst = append(dst, propSubscriptionIdentifier)
		dst = appendVarInt(dst, id)
	}
	for _, up := range p.UserProperties {
		dst = append(dst, propUserProperty)
		dst = appendString(dst, up.Key)
		dst = appendString(dst, up.Value)
	}

	propLen := len(dst) - propsStart
	if propLen < 128 {
		dst[startLen] = byte(propLen)
		return dst
	}

	// Properties section doesn't fit the 1 reserved length byte: grow the
	// length prefix and shift the encoded properties past it.
	lenBuf := appendVarInt(nil, propLen)
	lenDiff := len(lenBuf) - 1

	dst = append(dst, make([]byte, lenDiff)...)
	copy(dst[propsStart+lenDiff:], dst[propsStart:propsStart+propLen])
	copy(dst[startLen:], lenBuf)

	return dst
}
