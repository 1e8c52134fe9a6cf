package engine

import (
	"math"
	"math/rand"
	"sort"
)

// Sampling policy, applied in order: repetition penalty, temperature
// scaling, softmax, top-k, top-p, multinomial draw. Filters renormalize the
// remaining probability mass before the draw.

// applyRepetitionPenalty discounts tokens that already appear in the
// generated continuation. Positive logits are divided, negative multiplied.
func applyRepetitionPenalty(logits []float64, generated []int, penalty float64) {
	if penalty == 1 {
		return
	}
	seen := make(map[int]struct{}, len(generated))
	for _, id := range generated {
		seen[id] = struct{}{}
	}
	for id := range seen {
		if id < 0 || id >= len(logits) {
			continue
		}
		if logits[id] > 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
}

// softmax converts logits to probabilities, shifted by the max for
// numerical stability.
func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

type indexedProb struct {
	index int
	prob  float64
}

// sortedByProb orders descending by probability; equal probabilities keep
// ascending vocabulary index so cutoff ties are deterministic.
func sortedByProb(probs []float64) []indexedProb {
	indexed := make([]indexedProb, len(probs))
	for i, p := range probs {
		indexed[i] = indexedProb{i, p}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].prob != indexed[j].prob {
			return indexed[i].prob > indexed[j].prob
		}
		return indexed[i].index < indexed[j].index
	})
	return indexed
}

// applyTopK keeps the k most likely tokens and renormalizes.
func applyTopK(probs []float64, k int) []float64 {
	if k <= 0 || k >= len(probs) {
		return probs
	}
	indexed := sortedByProb(probs)
	filtered := make([]float64, len(probs))
	var total float64
	for i := 0; i < k; i++ {
		filtered[indexed[i].index] = indexed[i].prob
		total += indexed[i].prob
	}
	if total > 0 {
		for i := range filtered {
			filtered[i] /= total
		}
	}
	return filtered
}

// applyTopP keeps the smallest set of tokens whose cumulative probability
// reaches p (nucleus sampling) and renormalizes.
func applyTopP(probs []float64, p float64) []float64 {
	if p <= 0 || p >= 1 {
		return probs
	}
	indexed := sortedByProb(probs)
	filtered := make([]float64, len(probs))
	var cum, total float64
	for _, item := range indexed {
		if cum >= p {
			break
		}
		filtered[item.index] = item.prob
		cum += item.prob
		total += item.prob
	}
	if total > 0 {
		for i := range filtered {
			filtered[i] /= total
		}
	}
	return filtered
}

// sampleFrom draws an index from a probability distribution.
func sampleFrom(probs []float64, rng *rand.Rand) int {
	r := rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += p
		if r < cum {
			return i
		}
	}
	// Mass can fall fractionally short of 1; fall back to the last token
	// with any probability.
	for i := len(probs) - 1; i >= 0; i-- {
		if probs[i] > 0 {
			return i
		}
	}
	return len(probs) - 1
}

// pickToken runs the full sampling policy over raw logits.
func pickToken(logits []float64, generated []int, p Params, rng *rand.Rand) int {
	applyRepetitionPenalty(logits, generated, p.RepetitionPenalty)
	for i := range logits {
		logits[i] /= p.Temperature
	}
	probs := softmax(logits)
	if p.TopK > 0 {
		probs = applyTopK(probs, p.TopK)
	}
	if p.TopP > 0 && p.TopP < 1 {
		probs = applyTopP(probs, p.TopP)
	}
	return sampleFrom(probs, rng)
}

// widen converts backend logits to the sampler's working precision and
// reports whether every value is finite.
func widen(logits []float32) ([]float64, bool) {
	out := make([]float64, len(logits))
	for i, l := range logits {
		f := float64(l)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
