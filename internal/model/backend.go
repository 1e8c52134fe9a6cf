package model

import "context"

// Tokenizer is the external tokenizer collaborator surface the engine needs.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) string
	// EOS returns the end-of-sequence token id.
	EOS() int
	VocabSize() int
}

// EncoderState is the opaque output of a seq2seq encoder pass. It is produced
// once per run and treated as read-only by the decoder loop.
type EncoderState interface{}

// Backend is a loaded, frozen weight set. Capability interfaces below refine
// it per execution shape; Bind discovers them by type assertion.
type Backend interface {
	Close() error
}

// CausalBackend scores the next token over one shared prompt+continuation
// sequence.
type CausalBackend interface {
	Backend
	Tokenizer() Tokenizer
	Logits(ctx context.Context, seq []int) ([]float32, error)
}

// Seq2SeqBackend consumes the prompt with a single encoder pass and scores
// decoder steps against the fixed encoder state. Prompt tokens are never
// re-scored by the decoder.
type Seq2SeqBackend interface {
	Backend
	Tokenizer() Tokenizer
	Encode(ctx context.Context, prompt []int) (EncoderState, error)
	StepLogits(ctx context.Context, enc EncoderState, decoded []int) ([]float32, error)
	// DecoderStart returns the token id the decoder loop is primed with.
	DecoderStart() int
}

// Generator is implemented by native backends that own their decode loop
// (llama.cpp). The engine forwards sampling parameters and receives tokens
// through the callback; returning an error from onToken stops generation.
type Generator interface {
	Backend
	Generate(ctx context.Context, prompt string, opts GenerateOptions, onToken func(string) error) (string, error)
}

// Loader loads base weights into memory exactly once, attaching the adapter
// delta when one is given. Implementations map load failures to ErrModelLoad
// and memory exhaustion to ErrDeviceOutOfMemory.
type Loader interface {
	Load(desc Descriptor, adapter *AdapterDescriptor, opts LoadOptions) (Backend, error)
}
