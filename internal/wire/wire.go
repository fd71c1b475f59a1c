package wire

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// #region codec
// Name is the gRPC content-subtype both services in this repo speak.
// Messages are plain Go structs with JSON tags; registering this codec lets
// grpc carry them without generated bindings.
const Name = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return Name }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
// #endregion codec

// #region call-option
// CallOption selects the JSON codec on an outgoing call. Every client in
// this repo passes it on every Invoke.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}
// #endregion call-option
