package model

// Descriptor identifies a base model's weight source and family. Immutable
// once the model is loaded.
type Descriptor struct {
	Name   string
	Path   string
	Family Family
}

// AdapterDescriptor identifies a low-rank adapter and the base family it was
// trained against. Binding fails unless the families match.
type AdapterDescriptor struct {
	Name   string
	Path   string
	Family Family
}

// ComposeStrategy selects how the adapter delta is combined with the frozen
// base weights. Both strategies must produce numerically equivalent output
// up to floating-point tolerance.
type ComposeStrategy int

const (
	// ComposeCallTime keeps base and delta as separate buffers and applies
	// the delta at inference time.
	ComposeCallTime ComposeStrategy = iota
	// ComposeMerged materializes a merged shadow copy of the weights at
	// bind time. The base buffers are never mutated.
	ComposeMerged
)

// LoadOptions carries loader tunables chosen at bind time.
type LoadOptions struct {
	Strategy ComposeStrategy
}

// GenerateOptions is the parameter subset forwarded to native backends that
// run their own decode loop.
type GenerateOptions struct {
	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
	Seed              int
}
