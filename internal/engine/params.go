// Package engine drives autoregressive generation over a bound model:
// sampling policy, beam search, stopping conditions, and incremental
// chunk emission.
package engine

// Params are the per-request sampling parameters. They are validated before
// a session is admitted; invalid ranges fail fast rather than being clamped.
type Params struct {
	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	TopK              int
	NumBeams          int
	RepetitionPenalty float64
	// Seed pins the sampler's randomness; 0 lets the engine choose.
	Seed int64
}

// DefaultParams are applied for fields a request omits.
func DefaultParams() Params {
	return Params{
		MaxNewTokens:      256,
		Temperature:       0.7,
		TopP:              0.9,
		TopK:              40,
		NumBeams:          1,
		RepetitionPenalty: 1.0,
	}
}

// Validate checks ranges. MaxNewTokens of zero is admitted: it terminates
// immediately with a length stop and empty output.
func (p Params) Validate() error {
	if p.MaxNewTokens < 0 {
		return errInvalidParams{field: "max_new_tokens", reason: "must be >= 0"}
	}
	if p.Temperature <= 0 {
		return errInvalidParams{field: "temperature", reason: "must be > 0"}
	}
	if p.TopP <= 0 || p.TopP > 1 {
		return errInvalidParams{field: "top_p", reason: "must be in (0, 1]"}
	}
	if p.TopK < 0 {
		return errInvalidParams{field: "top_k", reason: "must be >= 0"}
	}
	if p.NumBeams < 1 {
		return errInvalidParams{field: "num_beams", reason: "must be >= 1"}
	}
	if p.RepetitionPenalty <= 0 {
		return errInvalidParams{field: "repetition_penalty", reason: "must be > 0"}
	}
	return nil
}
