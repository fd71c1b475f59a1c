package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

// #region envelope
// scanEnvelope is the serialized form of a profile inside a scan blob.
// The window the profile was encoded under travels with it so a later
// decode can measure how far its own window has drifted.
type scanEnvelope struct {
	ID            string              `json:"id"`
	Wealth        float64             `json:"wealth"`
	Hunger        float64             `json:"hunger"`
	Status        float64             `json:"status"`
	Window        float64             `json:"window"`
	Relationships map[string][]string `json:"relationships,omitempty"`
}
// #endregion envelope

// #region interval-codec
// IntervalCodec is the in-process reference codec. Decoding yields ranges
// centered on the encoded value; the half-width grows with the distance
// between the encode-time and decode-time windows, so reinterpreting an old
// scan under a shifted temporal context widens the uncertainty.
//
// Ranges are symmetric and never clamped, so the midpoint always recovers
// the encoded value exactly.
type IntervalCodec struct {
	// Spread is the base half-width of every decoded range. Zero yields
	// point ranges regardless of window drift.
	Spread float64
}

// NewIntervalCodec returns the codec with the default spread.
func NewIntervalCodec() *IntervalCodec {
	return &IntervalCodec{Spread: 5.0}
}
// #endregion interval-codec

// #region encode
func (c *IntervalCodec) Encode(_ context.Context, p profile.Profile, timeWindow float64) ([]byte, error) {
	env := scanEnvelope{
		ID:            p.ID,
		Wealth:        float64(p.Wealth),
		Hunger:        float64(p.Hunger),
		Status:        float64(p.Status),
		Window:        clampWindow(timeWindow),
		Relationships: p.Relationships,
	}
	scan, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode profile %s: %w", p.ID, err)
	}
	return scan, nil
}
// #endregion encode

// #region decode
func (c *IntervalCodec) Decode(_ context.Context, scan []byte, timeWindow float64) (profile.Ranges, error) {
	var env scanEnvelope
	if err := json.Unmarshal(scan, &env); err != nil {
		return profile.Ranges{}, fmt.Errorf("decode scan: %w", err)
	}

	drift := math.Abs(clampWindow(timeWindow) - env.Window)
	half := c.Spread * (1 + drift)

	around := func(v float64) profile.Interval {
		return profile.Interval{v - half, v + half}
	}
	return profile.Ranges{
		Wealth: around(env.Wealth),
		Hunger: around(env.Hunger),
		Status: around(env.Status),
	}, nil
}
// #endregion decode

// #region helpers
func clampWindow(w float64) float64 {
	if w < 0 || math.IsNaN(w) {
		return 0
	}
	return w
}
// #endregion helpers
