package packets

// MQTT control packet types this codec builds. The dispatcher only ever
// hands subscribers PUBLISH (the fan-out itself) and PUBREL (step two of
// the QoS 2 handshake); the rest of the MQTT type space belongs to the
// connection layer's own inbound decoder, not this package.
const (
	PUBLISH = 3
	PUBREL  = 6
)
