package codec

import (
	"context"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

// #region interface
// Codec is the boundary to the profile encoder. Encode turns a profile into
// an opaque scan blob under a time window; Decode reinterprets a scan into
// numeric ranges, possibly under a different time window than it was encoded
// with.
//
// Time windows below zero are treated as zero by every implementation in
// this repo; a zero window yields the tightest ranges the encoding allows.
type Codec interface {
	Encode(ctx context.Context, p profile.Profile, timeWindow float64) ([]byte, error)
	Decode(ctx context.Context, scan []byte, timeWindow float64) (profile.Ranges, error)
}
// #endregion interface
