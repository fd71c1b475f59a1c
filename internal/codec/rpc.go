package codec

import (
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

// #region methods
// Full method names of the external codec service. The service is expected
// to speak the JSON content-subtype registered in internal/wire.
const (
	encodeMethod = "/agentledger.Codec/Encode"
	decodeMethod = "/agentledger.Codec/Decode"
)
// #endregion methods

// #region messages
// EncodeRequest asks the codec service to encode a profile under a window.
type EncodeRequest struct {
	Profile    profile.Profile `json:"profile"`
	TimeWindow float64         `json:"time_window"`
}

// EncodeResponse carries the opaque scan blob.
type EncodeResponse struct {
	Scan []byte `json:"scan"`
}

// DecodeRequest asks the codec service to reinterpret a scan under a window.
type DecodeRequest struct {
	Scan       []byte  `json:"scan"`
	TimeWindow float64 `json:"time_window"`
}

// DecodeResponse carries the decoded per-metric ranges.
type DecodeResponse struct {
	Ranges profile.Ranges `json:"ranges"`
}
// #endregion messages
