package model

import (
	"context"
	"hash/fnv"
	"math/rand"
	"os"
)

// Built-in backend: a deterministic embedding-table model over a byte-level
// vocabulary. It exists so the whole pipeline (both families, both adapter
// composition strategies, the full decoding engine) runs without a native
// runtime: tests, the blackbox suite, and --backend builtin.

const (
	byteVocab        = 256
	builtinEOS       = 256
	builtinStart     = 257
	builtinVocabSize = 258

	adapterRank = 4
)

// BuiltinLoader derives a frozen weight table from the weight path, so the
// same path always yields the same model.
type BuiltinLoader struct{}

func NewBuiltinLoader() *BuiltinLoader { return &BuiltinLoader{} }

func (l *BuiltinLoader) Load(desc Descriptor, adapter *AdapterDescriptor, opts LoadOptions) (Backend, error) {
	if desc.Path == "" {
		return nil, ErrModelLoad("(empty path)", nil)
	}
	if _, err := os.Stat(desc.Path); err != nil {
		return nil, ErrModelLoad(desc.Path, err)
	}
	base := deriveWeights(desc.Path)
	b := &builtinBackend{weights: base}
	if adapter != nil {
		if _, err := os.Stat(adapter.Path); err != nil {
			return nil, ErrModelLoad(adapter.Path, err)
		}
		delta := deriveDelta(adapter.Path)
		if opts.Strategy == ComposeMerged {
			// Shadow copy; base stays frozen.
			b.weights = delta.Merge(base)
		} else {
			b.delta = delta
		}
	}
	return b, nil
}

type builtinBackend struct {
	weights [][]float32
	delta   *LowRankDelta // nil when absent or merged
}

func (b *builtinBackend) Close() error { return nil }

func (b *builtinBackend) Tokenizer() Tokenizer { return byteTokenizer{} }

// row returns the effective weight row: base plus the call-time delta.
func (b *builtinBackend) row(i int) []float32 {
	out := make([]float32, builtinVocabSize)
	copy(out, b.weights[i])
	if b.delta != nil {
		b.delta.AddRow(i, out)
	}
	return out
}

func (b *builtinBackend) Logits(ctx context.Context, seq []int) ([]float32, error) {
	last := builtinStart
	if len(seq) > 0 {
		last = seq[len(seq)-1]
	}
	return b.row(last), nil
}

func (b *builtinBackend) Encode(ctx context.Context, prompt []int) (EncoderState, error) {
	// Mean-pool the prompt token rows into one fixed state vector.
	state := make([]float32, builtinVocabSize)
	if len(prompt) == 0 {
		return state, nil
	}
	for _, id := range prompt {
		row := b.row(id)
		for j := range state {
			state[j] += row[j]
		}
	}
	inv := 1 / float32(len(prompt))
	for j := range state {
		state[j] *= inv
	}
	return state, nil
}

func (b *builtinBackend) StepLogits(ctx context.Context, enc EncoderState, decoded []int) ([]float32, error) {
	state := enc.([]float32)
	last := builtinStart
	if len(decoded) > 0 {
		last = decoded[len(decoded)-1]
	}
	out := b.row(last)
	for j := range out {
		out[j] += 0.5 * state[j]
	}
	return out, nil
}

func (b *builtinBackend) DecoderStart() int { return builtinStart }

// byteTokenizer maps text to raw bytes plus EOS and decoder-start specials.
type byteTokenizer struct{}

func (byteTokenizer) Encode(text string) ([]int, error) {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids, nil
}

func (byteTokenizer) Decode(ids []int) string {
	buf := make([]byte, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= byteVocab {
			continue
		}
		buf = append(buf, byte(id))
	}
	return string(buf)
}

func (byteTokenizer) EOS() int { return builtinEOS }

func (byteTokenizer) VocabSize() int { return builtinVocabSize }

func pathSeed(path string) int64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return int64(h.Sum64())
}

func deriveWeights(path string) [][]float32 {
	rng := rand.New(rand.NewSource(pathSeed(path)))
	w := make([][]float32, builtinVocabSize)
	for i := range w {
		row := make([]float32, builtinVocabSize)
		for j := range row {
			row[j] = rng.Float32()*2 - 1
		}
		w[i] = row
	}
	return w
}

func deriveDelta(path string) *LowRankDelta {
	rng := rand.New(rand.NewSource(pathSeed(path)))
	a := make([][]float32, adapterRank)
	for k := range a {
		row := make([]float32, builtinVocabSize)
		for j := range row {
			row[j] = rng.Float32()*2 - 1
		}
		a[k] = row
	}
	b := make([][]float32, builtinVocabSize)
	for i := range b {
		row := make([]float32, adapterRank)
		for k := range row {
			row[k] = rng.Float32()*2 - 1
		}
		b[i] = row
	}
	return &LowRankDelta{A: a, B: b, Scale: 0.25}
}
