package engine

import (
	"context"
	"math"
	"sort"

	"instructd/internal/model"
)

// Beam search: NumBeams parallel hypotheses scored by cumulative
// log-probability, pruned to the top NumBeams after each step. Sampling
// controls (temperature, top-p, top-k) are ignored on this path. Hypotheses
// are not stable mid-decode, so the winning text is emitted as a single
// chunk at the end.

type hypothesis struct {
	tokens []int
	score  float64
	done   bool
}

// hypLess orders by score descending; ties fall back to the lexicographic
// token sequence so pruning is deterministic.
func hypLess(a, b hypothesis) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	n := len(a.tokens)
	if len(b.tokens) < n {
		n = len(b.tokens)
	}
	for i := 0; i < n; i++ {
		if a.tokens[i] != b.tokens[i] {
			return a.tokens[i] < b.tokens[i]
		}
	}
	return len(a.tokens) < len(b.tokens)
}

func beamLoop(ctx context.Context, run model.Run, tok model.Tokenizer, p Params, onChunk func(string) error) (string, StopReason, error) {
	if p.MaxNewTokens == 0 {
		return "", StopLength, nil
	}
	beams := []hypothesis{{tokens: nil, score: 0}}
	for step := 0; step < p.MaxNewTokens; step++ {
		if ctx.Err() != nil {
			return "", stopFor(ctx), nil
		}
		var next []hypothesis
		expanded := false
		for _, h := range beams {
			if h.done {
				next = append(next, h)
				continue
			}
			expanded = true
			raw, err := run.Logits(ctx, h.tokens)
			if err != nil {
				if ctx.Err() != nil {
					return "", stopFor(ctx), nil
				}
				return "", StopNone, ErrDecoding(err.Error())
			}
			logits, finite := widen(raw)
			if !finite {
				return "", StopNone, ErrDecoding("non-finite logits")
			}
			applyRepetitionPenalty(logits, h.tokens, p.RepetitionPenalty)
			probs := softmax(logits)
			for _, cand := range sortedByProb(probs)[:minInt(p.NumBeams, len(probs))] {
				ext := hypothesis{
					tokens: append(append([]int(nil), h.tokens...), cand.index),
					score:  h.score + math.Log(cand.prob),
					done:   cand.index == tok.EOS(),
				}
				next = append(next, ext)
			}
		}
		if !expanded {
			break
		}
		sort.Slice(next, func(i, j int) bool { return hypLess(next[i], next[j]) })
		if len(next) > p.NumBeams {
			next = next[:p.NumBeams]
		}
		beams = next
	}
	best := beams[0]
	for _, h := range beams[1:] {
		if hypLess(h, best) {
			best = h
		}
	}
	out := best.tokens
	reason := StopLength
	if best.done {
		// Drop the terminating EOS from the decoded text.
		out = out[:len(out)-1]
		reason = StopEOS
	}
	text := tok.Decode(out)
	if text != "" {
		if err := onChunk(text); err != nil {
			return "", StopNone, err
		}
	}
	return text, reason, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
