package engine

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"instructd/internal/model"
)

// StopReason explains why a decode loop ended.
type StopReason string

const (
	StopNone      StopReason = ""
	StopEOS       StopReason = "eos"
	StopLength    StopReason = "length"
	StopCancelled StopReason = "cancelled"
	StopTimeout   StopReason = "timeout"
)

// Run generates a continuation for prompt against the bound model, invoking
// onChunk with each incremental text fragment. It returns the full generated
// text and the stop reason. Cancellation and deadline expiry are observed at
// the top of every iteration, so their latency is bounded by one token's
// compute; neither is reported as an error.
func Run(ctx context.Context, bm *model.BoundModel, prompt string, p Params, onChunk func(string) error) (string, StopReason, error) {
	if err := p.Validate(); err != nil {
		return "", StopNone, err
	}
	if ng, ok := bm.Native(); ok {
		return runNative(ctx, ng, prompt, p, onChunk)
	}
	tok := bm.Tokenizer()
	promptIDs, err := tok.Encode(prompt)
	if err != nil {
		return "", StopNone, ErrDecoding("tokenize prompt: " + err.Error())
	}
	run, err := bm.Start(ctx, promptIDs)
	if err != nil {
		return "", StopNone, err
	}
	if p.NumBeams > 1 {
		return beamLoop(ctx, run, tok, p, onChunk)
	}
	return sampleLoop(ctx, run, tok, p, onChunk)
}

// stopFor maps a done context to the corresponding stop reason.
func stopFor(ctx context.Context) StopReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StopTimeout
	}
	return StopCancelled
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func sampleLoop(ctx context.Context, run model.Run, tok model.Tokenizer, p Params, onChunk func(string) error) (string, StopReason, error) {
	rng := newRNG(p.Seed)
	generated := make([]int, 0, p.MaxNewTokens)
	var emitted strings.Builder
	for len(generated) < p.MaxNewTokens {
		if ctx.Err() != nil {
			return emitted.String(), stopFor(ctx), nil
		}
		raw, err := run.Logits(ctx, generated)
		if err != nil {
			if ctx.Err() != nil {
				return emitted.String(), stopFor(ctx), nil
			}
			return emitted.String(), StopNone, ErrDecoding(err.Error())
		}
		logits, finite := widen(raw)
		if !finite {
			return emitted.String(), StopNone, ErrDecoding("non-finite logits")
		}
		id := pickToken(logits, generated, p, rng)
		if id == tok.EOS() {
			return emitted.String(), StopEOS, nil
		}
		generated = append(generated, id)
		// Decode the whole continuation and emit only the new suffix, so
		// multi-byte sequences surface once they are complete.
		full := tok.Decode(generated)
		if frag := full[emitted.Len():]; frag != "" {
			if err := onChunk(frag); err != nil {
				return emitted.String(), StopNone, err
			}
			emitted.WriteString(frag)
		}
	}
	return emitted.String(), StopLength, nil
}

// runNative delegates to a backend that owns its decode loop (llama.cpp),
// forwarding sampling parameters and bridging its token callback to onChunk.
// Beam search needs per-step logits, which native backends do not expose.
func runNative(ctx context.Context, ng model.Generator, prompt string, p Params, onChunk func(string) error) (string, StopReason, error) {
	if p.NumBeams > 1 {
		return "", StopNone, ErrDecoding("beam search is not supported by the native backend")
	}
	opts := model.GenerateOptions{
		MaxNewTokens:      p.MaxNewTokens,
		Temperature:       p.Temperature,
		TopP:              p.TopP,
		TopK:              p.TopK,
		RepetitionPenalty: p.RepetitionPenalty,
		Seed:              int(p.Seed),
	}
	if p.MaxNewTokens == 0 {
		return "", StopLength, nil
	}
	tokens := 0
	var emitted strings.Builder
	text, err := ng.Generate(ctx, prompt, opts, func(t string) error {
		tokens++
		if err := onChunk(t); err != nil {
			return err
		}
		emitted.WriteString(t)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return emitted.String(), stopFor(ctx), nil
		}
		return emitted.String(), StopNone, ErrDecoding(err.Error())
	}
	if ctx.Err() != nil {
		return emitted.String(), stopFor(ctx), nil
	}
	if text == "" {
		text = emitted.String()
	}
	reason := StopEOS
	if tokens >= p.MaxNewTokens {
		reason = StopLength
	}
	return text, reason, nil
}
