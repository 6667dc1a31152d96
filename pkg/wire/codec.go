package wire

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as "proto" so grpc's default content-type
// negotiation (which requests codec name "proto" whenever a client sets
// no content-subtype) resolves to this codec without any client-side
// change — letting plain Go structs cross grpc without protoc-generated
// message types. Internally it's the same JSON representation
// MarshalSpan/UnmarshalSpan use everywhere else in this codebase.
const codecName = "proto"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
