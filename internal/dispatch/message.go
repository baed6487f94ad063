package dispatch

import (
	"github.com/shareleaderd/broker/internal/model"
	"github.com/shareleaderd/broker/internal/packets"
)

// forwardedFromSharedKey is the v5 user-property key injected when a
// subscriber's rewrite flag is set, naming the shared-subscription group a
// message was forwarded from.
const forwardedFromSharedKey = "Forwarded-From-Shared"

func minQoS(a, b model.QoS) model.QoS {
	if a < b {
		return a
	}
	return b
}

// buildPublish constructs the outbound PUBLISH for delivering msg to s,
// with pkid already resolved by the caller (0 for QoS 0).
func buildPublish(msg *model.Message, s *model.Subscriber, maxQoS uint8, pkid uint16) *packets.PublishPacket {
	qos := minQoS(minQoS(msg.SourceQoS, s.QoSMax), model.QoS(maxQoS))

	pkt := &packets.PublishPacket{
		Dup:      false,
		QoS:      uint8(qos),
		Retain:   false,
		Topic:    msg.Topic,
		Payload:  msg.Payload,
		Version:  uint8(s.Protocol),
		PacketID: pkid,
	}

	if s.Protocol == model.ProtocolV50 {
		pkt.Properties = buildV5Properties(msg, s)
	}

	return pkt
}

// buildPubrel constructs the PUBREL sent after a matching PUBREC, step 2 of
// the QoS 2 handshake.
func buildPubrel(s *model.Subscriber, pkid uint16) *packets.PubrelPacket {
	return &packets.PubrelPacket{
		PacketID: pkid,
		Version:  uint8(s.Protocol),
	}
}

func buildV5Properties(msg *model.Message, s *model.Subscriber) *packets.Properties {
	props := &packets.Properties{}

	if s.SubscriptionIdentifier != nil {
		props.SubscriptionIdentifier = append(props.SubscriptionIdentifier, *s.SubscriptionIdentifier)
	}
	if msg.ContentType != "" {
		props.ContentType = msg.ContentType
		props.Presence |= packets.PresContentType
	}
	if msg.ResponseTopic != "" {
		props.ResponseTopic = msg.ResponseTopic
		props.Presence |= packets.PresResponseTopic
	}
	if len(msg.CorrelationData) > 0 {
		props.CorrelationData = msg.CorrelationData
	}
	if msg.MessageExpiry != nil {
		props.MessageExpiryInterval = *msg.MessageExpiry
		props.Presence |= packets.PresMessageExpiryInterval
	}
	for k, v := range msg.UserProperties {
		props.UserProperties = append(props.UserProperties, packets.UserProperty{Key: k, Value: v})
	}
	if s.RewriteFlag {
		props.UserProperties = append(props.UserProperties, packets.UserProperty{
			Key:   forwardedFromSharedKey,
			Value: s.GroupName,
		})
	}

	return props
}
