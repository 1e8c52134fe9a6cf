package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"instructd/internal/model"
)

// letterTok maps token ids to single letters; id 26 is EOS.
type letterTok struct{}

const letterEOS = 26

func (letterTok) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text))
	for i := 0; i < len(text); i++ {
		ids = append(ids, int(text[i]-'a'))
	}
	return ids, nil
}

func (letterTok) Decode(ids []int) string {
	out := make([]byte, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < 26 {
			out = append(out, byte('a'+id))
		}
	}
	return string(out)
}

func (letterTok) EOS() int { return letterEOS }

func (letterTok) VocabSize() int { return 27 }

// scriptBackend returns logits from a step function over the full sequence.
type scriptBackend struct {
	logits func(seq []int) []float32
	delay  time.Duration
}

func (b *scriptBackend) Close() error { return nil }

func (b *scriptBackend) Tokenizer() model.Tokenizer { return letterTok{} }

func (b *scriptBackend) Logits(ctx context.Context, seq []int) ([]float32, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.logits(seq), nil
}

type scriptLoader struct{ backend model.Backend }

func (l scriptLoader) Load(model.Descriptor, *model.AdapterDescriptor, model.LoadOptions) (model.Backend, error) {
	return l.backend, nil
}

func bindScript(t *testing.T, logits func(seq []int) []float32) *model.BoundModel {
	t.Helper()
	bm, err := model.Bind(scriptLoader{backend: &scriptBackend{logits: logits}},
		model.Descriptor{Name: "script", Path: "script", Family: model.FamilyCausal},
		nil, model.LoadOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return bm
}

// favor builds a logit vector with one strongly preferred token.
func favor(vocab, id int) []float32 {
	out := make([]float32, vocab)
	for i := range out {
		out[i] = -10
	}
	out[id] = 10
	return out
}

func greedyParams(maxNew int) Params {
	return Params{MaxNewTokens: maxNew, Temperature: 1, TopP: 1, TopK: 1, NumBeams: 1, RepetitionPenalty: 1}
}

func TestRunValidatesParams(t *testing.T) {
	bm := bindScript(t, func(seq []int) []float32 { return favor(27, 0) })
	p := greedyParams(4)
	p.Temperature = -1
	_, _, err := Run(context.Background(), bm, "", p, func(string) error { return nil })
	if err == nil || !IsInvalidSamplingParams(err) {
		t.Fatalf("expected invalid sampling params, got %v", err)
	}
}

func TestRunZeroMaxNewTokens(t *testing.T) {
	calls := 0
	bm := bindScript(t, func(seq []int) []float32 { calls++; return favor(27, 0) })
	text, reason, err := Run(context.Background(), bm, "abc", greedyParams(0), func(string) error {
		t.Fatalf("no chunk expected")
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != StopLength || text != "" {
		t.Fatalf("reason=%s text=%q", reason, text)
	}
	if calls != 0 {
		t.Fatalf("no forward pass expected, got %d", calls)
	}
}

func TestRunStopsAtLength(t *testing.T) {
	bm := bindScript(t, func(seq []int) []float32 { return favor(27, 2) })
	var chunks []string
	text, reason, err := Run(context.Background(), bm, "", greedyParams(3), func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != StopLength || text != "ccc" {
		t.Fatalf("reason=%s text=%q", reason, text)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 incremental fragments, got %v", chunks)
	}
}

func TestRunStopsAtEOS(t *testing.T) {
	// Emit 'h', 'i', then EOS.
	bm := bindScript(t, func(seq []int) []float32 {
		switch len(seq) {
		case 0:
			return favor(27, 'h'-'a')
		case 1:
			return favor(27, 'i'-'a')
		default:
			return favor(27, letterEOS)
		}
	})
	text, reason, err := Run(context.Background(), bm, "", greedyParams(100), func(string) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != StopEOS || text != "hi" {
		t.Fatalf("reason=%s text=%q", reason, text)
	}
}

func TestRunCancellation(t *testing.T) {
	bm := bindScript(t, func(seq []int) []float32 { return favor(27, 0) })
	ctx, cancel := context.WithCancel(context.Background())
	chunks := 0
	text, reason, err := Run(ctx, bm, "", greedyParams(1000), func(string) error {
		chunks++
		if chunks == 2 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != StopCancelled {
		t.Fatalf("reason=%s", reason)
	}
	if chunks != 2 || text != "aa" {
		t.Fatalf("no fragments may follow cancellation: chunks=%d text=%q", chunks, text)
	}
}

func TestRunTimeout(t *testing.T) {
	bm := bindScript(t, func(seq []int) []float32 { return favor(27, 0) })
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)
	_, reason, err := Run(ctx, bm, "", greedyParams(10), func(string) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reason != StopTimeout {
		t.Fatalf("reason=%s", reason)
	}
}

func TestRunNonFiniteLogits(t *testing.T) {
	bm := bindScript(t, func(seq []int) []float32 {
		return []float32{float32(math.NaN()), 1, 2}
	})
	_, _, err := Run(context.Background(), bm, "", greedyParams(5), func(string) error { return nil })
	if err == nil || !IsDecodingFailure(err) {
		t.Fatalf("expected decoding failure, got %v", err)
	}
}

func TestRunChunkErrorAborts(t *testing.T) {
	bm := bindScript(t, func(seq []int) []float32 { return favor(27, 0) })
	boom := errors.New("writer closed")
	_, _, err := Run(context.Background(), bm, "", greedyParams(5), func(string) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestRunSeedDeterminism(t *testing.T) {
	uniform := func(seq []int) []float32 {
		out := make([]float32, 27)
		for i := range out {
			out[i] = float32(i) * 0.01
		}
		return out
	}
	p := Params{MaxNewTokens: 16, Temperature: 0.8, TopP: 0.9, TopK: 10, NumBeams: 1, RepetitionPenalty: 1, Seed: 1234}
	a, _, err := Run(context.Background(), bindScript(t, uniform), "", p, func(string) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, _, err := Run(context.Background(), bindScript(t, uniform), "", p, func(string) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if a != b {
		t.Fatalf("same seed must reproduce output: %q vs %q", a, b)
	}
}
