package model

import "context"

// BoundModel composes a Descriptor and an optional AdapterDescriptor into one
// invocable unit. It is constructed once at startup, shared read-only by all
// sessions, and never mutated during inference. Metadata queries are safe
// from any goroutine without synchronization.
type BoundModel struct {
	desc    Descriptor
	adapter *AdapterDescriptor

	backend Backend
	causal  CausalBackend
	s2s     Seq2SeqBackend
	native  Generator
}

// Bind verifies adapter compatibility, loads the base weights exactly once
// via the loader, and wraps the result behind one capability surface.
func Bind(l Loader, desc Descriptor, adapter *AdapterDescriptor, opts LoadOptions) (*BoundModel, error) {
	if adapter != nil && adapter.Family != desc.Family {
		return nil, adapterFamilyMismatchError{base: desc.Family, adapter: adapter.Family}
	}
	b, err := l.Load(desc, adapter, opts)
	if err != nil {
		return nil, err
	}
	bm := &BoundModel{desc: desc, adapter: adapter, backend: b}
	if g, ok := b.(Generator); ok {
		bm.native = g
	}
	switch desc.Family {
	case FamilyCausal:
		if cb, ok := b.(CausalBackend); ok {
			bm.causal = cb
		}
	case FamilySeq2Seq:
		if sb, ok := b.(Seq2SeqBackend); ok {
			bm.s2s = sb
		}
	}
	if bm.causal == nil && bm.s2s == nil && bm.native == nil {
		_ = b.Close()
		return nil, ErrModelLoad(desc.Path, errBackendShape{family: desc.Family})
	}
	return bm, nil
}

type errBackendShape struct{ family Family }

func (e errBackendShape) Error() string {
	return "backend does not implement the " + string(e.family) + " execution shape"
}

// Family never changes after construction.
func (bm *BoundModel) Family() Family { return bm.desc.Family }

func (bm *BoundModel) Name() string { return bm.desc.Name }

func (bm *BoundModel) Path() string { return bm.desc.Path }

// AdapterName returns the attached adapter's name, or "" when none is bound.
func (bm *BoundModel) AdapterName() string {
	if bm.adapter == nil {
		return ""
	}
	return bm.adapter.Name
}

// Tokenizer returns the backend tokenizer, or nil for native backends that
// tokenize internally.
func (bm *BoundModel) Tokenizer() Tokenizer {
	switch {
	case bm.causal != nil:
		return bm.causal.Tokenizer()
	case bm.s2s != nil:
		return bm.s2s.Tokenizer()
	default:
		return nil
	}
}

// VocabSize reports the vocabulary size, 0 when unknown (native backends).
func (bm *BoundModel) VocabSize() int {
	if t := bm.Tokenizer(); t != nil {
		return t.VocabSize()
	}
	return 0
}

// Native returns the native generation fast path when the backend provides
// one.
func (bm *BoundModel) Native() (Generator, bool) {
	return bm.native, bm.native != nil
}

// Close releases backend resources. Called once at process shutdown.
func (bm *BoundModel) Close() error { return bm.backend.Close() }

// Run scores decoder steps for one generation. Both execution shapes sit
// behind this surface: the caller passes only the tokens generated so far and
// never re-supplies the prompt.
type Run interface {
	// Logits returns next-token logits conditioned on the run's prompt and
	// the generated continuation.
	Logits(ctx context.Context, generated []int) ([]float32, error)
}

// Start begins a generation run over the given prompt tokens. For seq2seq
// models the encoder pass happens here, once.
func (bm *BoundModel) Start(ctx context.Context, promptTokens []int) (Run, error) {
	switch {
	case bm.causal != nil:
		return &causalRun{b: bm.causal, prompt: promptTokens}, nil
	case bm.s2s != nil:
		enc, err := bm.s2s.Encode(ctx, promptTokens)
		if err != nil {
			return nil, err
		}
		return &seq2seqRun{b: bm.s2s, enc: enc}, nil
	default:
		return nil, errBackendShape{family: bm.desc.Family}
	}
}

// causalRun conditions on the full prompt+continuation sequence each step.
type causalRun struct {
	b      CausalBackend
	prompt []int
}

func (r *causalRun) Logits(ctx context.Context, generated []int) ([]float32, error) {
	seq := make([]int, 0, len(r.prompt)+len(generated))
	seq = append(seq, r.prompt...)
	seq = append(seq, generated...)
	return r.b.Logits(ctx, seq)
}

// seq2seqRun holds the fixed encoder state; the decoder sees only its own
// output, primed with the decoder start token.
type seq2seqRun struct {
	b   Seq2SeqBackend
	enc EncoderState
}

func (r *seq2seqRun) Logits(ctx context.Context, generated []int) ([]float32, error) {
	decoded := make([]int, 0, len(generated)+1)
	decoded = append(decoded, r.b.DecoderStart())
	decoded = append(decoded, generated...)
	return r.b.StepLogits(ctx, r.enc, decoded)
}
