// Package model binds a base language model and an optional low-rank adapter
// into one invocable unit shared read-only by all generation sessions.
package model

// Family identifies the execution shape of a model's forward pass.
type Family string

const (
	// FamilyCausal models share one token sequence between prompt and
	// continuation; next-token prediction conditions on everything so far.
	FamilyCausal Family = "causal"
	// FamilySeq2Seq models consume the prompt in a single encoder pass;
	// the decoder conditions on the fixed encoder output plus previously
	// generated tokens only.
	FamilySeq2Seq Family = "seq2seq"
)

// ParseFamily maps a configuration string to a Family.
func ParseFamily(s string) (Family, bool) {
	switch s {
	case string(FamilyCausal):
		return FamilyCausal, true
	case string(FamilySeq2Seq):
		return FamilySeq2Seq, true
	default:
		return "", false
	}
}
