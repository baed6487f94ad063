package placement

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec lets the placement client speak gRPC framing over plain JSON
// payloads. The placement surface is two unary calls with flat request and
// response shapes; plain structs keep the client free of a protoc build
// step and a generated-stub dependency it would barely use.
type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
