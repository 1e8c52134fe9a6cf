package model

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// helper: create a placeholder weight file
func createWeightFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestBindAdapterFamilyMismatch(t *testing.T) {
	d := t.TempDir()
	base := createWeightFile(t, d, "base.bin")
	ad := createWeightFile(t, d, "adapter.bin")
	_, err := Bind(NewBuiltinLoader(),
		Descriptor{Name: "m", Path: base, Family: FamilyCausal},
		&AdapterDescriptor{Name: "a", Path: ad, Family: FamilySeq2Seq},
		LoadOptions{})
	if err == nil {
		t.Fatalf("expected bind to fail")
	}
	if !IsAdapterFamilyMismatch(err) {
		t.Fatalf("expected adapter family mismatch, got %v", err)
	}
}

func TestBindMissingWeights(t *testing.T) {
	_, err := Bind(NewBuiltinLoader(),
		Descriptor{Name: "m", Path: "/nonexistent/weights.bin", Family: FamilyCausal},
		nil, LoadOptions{})
	if err == nil || !IsModelLoad(err) {
		t.Fatalf("expected model load failure, got %v", err)
	}
}

func TestBindMissingAdapterWeights(t *testing.T) {
	d := t.TempDir()
	base := createWeightFile(t, d, "base.bin")
	_, err := Bind(NewBuiltinLoader(),
		Descriptor{Name: "m", Path: base, Family: FamilyCausal},
		&AdapterDescriptor{Name: "a", Path: filepath.Join(d, "missing.bin"), Family: FamilyCausal},
		LoadOptions{})
	if err == nil || !IsModelLoad(err) {
		t.Fatalf("expected model load failure, got %v", err)
	}
}

func TestBindMetadata(t *testing.T) {
	d := t.TempDir()
	base := createWeightFile(t, d, "base.bin")
	ad := createWeightFile(t, d, "adapter.bin")
	bm, err := Bind(NewBuiltinLoader(),
		Descriptor{Name: "tiny", Path: base, Family: FamilyCausal},
		&AdapterDescriptor{Name: "tuned", Path: ad, Family: FamilyCausal},
		LoadOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer bm.Close()
	if bm.Family() != FamilyCausal {
		t.Fatalf("family=%s", bm.Family())
	}
	if bm.Name() != "tiny" || bm.AdapterName() != "tuned" {
		t.Fatalf("metadata: name=%s adapter=%s", bm.Name(), bm.AdapterName())
	}
	if bm.VocabSize() != builtinVocabSize {
		t.Fatalf("vocab=%d", bm.VocabSize())
	}
	if _, ok := bm.Native(); ok {
		t.Fatalf("builtin backend must not expose a native path")
	}
}

func TestCausalRunConditionsOnPrompt(t *testing.T) {
	d := t.TempDir()
	base := createWeightFile(t, d, "base.bin")
	bm, err := Bind(NewBuiltinLoader(), Descriptor{Path: base, Family: FamilyCausal}, nil, LoadOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer bm.Close()
	ctx := context.Background()
	run, err := bm.Start(ctx, []int{10, 20})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// With no generated tokens, logits condition on the last prompt token.
	got, err := run.Logits(ctx, nil)
	if err != nil {
		t.Fatalf("logits: %v", err)
	}
	other, err := run.Logits(ctx, []int{30})
	if err != nil {
		t.Fatalf("logits: %v", err)
	}
	if floats32Equal(got, other) {
		t.Fatalf("logits must change once a token is generated")
	}
}

func TestSeq2SeqRunEncodesOnce(t *testing.T) {
	d := t.TempDir()
	base := createWeightFile(t, d, "base.bin")
	bm, err := Bind(NewBuiltinLoader(), Descriptor{Path: base, Family: FamilySeq2Seq}, nil, LoadOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer bm.Close()
	ctx := context.Background()
	runA, err := bm.Start(ctx, []int{1, 2, 3})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runB, err := bm.Start(ctx, []int{9})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// Same decoder prefix under different prompts must differ only through
	// the encoder state captured at Start.
	a, err := runA.Logits(ctx, []int{5})
	if err != nil {
		t.Fatalf("logits: %v", err)
	}
	b, err := runB.Logits(ctx, []int{5})
	if err != nil {
		t.Fatalf("logits: %v", err)
	}
	if floats32Equal(a, b) {
		t.Fatalf("different prompts must yield different encoder states")
	}
}

func TestComposeStrategiesEquivalent(t *testing.T) {
	d := t.TempDir()
	base := createWeightFile(t, d, "base.bin")
	ad := createWeightFile(t, d, "adapter.bin")
	desc := Descriptor{Path: base, Family: FamilyCausal}
	adapter := &AdapterDescriptor{Path: ad, Family: FamilyCausal}

	callTime, err := Bind(NewBuiltinLoader(), desc, adapter, LoadOptions{Strategy: ComposeCallTime})
	if err != nil {
		t.Fatalf("bind call-time: %v", err)
	}
	defer callTime.Close()
	merged, err := Bind(NewBuiltinLoader(), desc, adapter, LoadOptions{Strategy: ComposeMerged})
	if err != nil {
		t.Fatalf("bind merged: %v", err)
	}
	defer merged.Close()

	ctx := context.Background()
	seq := []int{7, 42, 101}
	ra, _ := callTime.Start(ctx, seq)
	rb, _ := merged.Start(ctx, seq)
	la, err := ra.Logits(ctx, []int{3})
	if err != nil {
		t.Fatalf("logits: %v", err)
	}
	lb, err := rb.Logits(ctx, []int{3})
	if err != nil {
		t.Fatalf("logits: %v", err)
	}
	if len(la) != len(lb) {
		t.Fatalf("length mismatch %d vs %d", len(la), len(lb))
	}
	for i := range la {
		if math.Abs(float64(la[i]-lb[i])) > 1e-4 {
			t.Fatalf("strategies diverge at %d: %v vs %v", i, la[i], lb[i])
		}
	}
}

func TestAdapterChangesLogits(t *testing.T) {
	d := t.TempDir()
	base := createWeightFile(t, d, "base.bin")
	ad := createWeightFile(t, d, "adapter.bin")
	desc := Descriptor{Path: base, Family: FamilyCausal}

	plain, err := Bind(NewBuiltinLoader(), desc, nil, LoadOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer plain.Close()
	tuned, err := Bind(NewBuiltinLoader(), desc, &AdapterDescriptor{Path: ad, Family: FamilyCausal}, LoadOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer tuned.Close()

	ctx := context.Background()
	ra, _ := plain.Start(ctx, []int{1})
	rb, _ := tuned.Start(ctx, []int{1})
	la, _ := ra.Logits(ctx, nil)
	lb, _ := rb.Logits(ctx, nil)
	if floats32Equal(la, lb) {
		t.Fatalf("adapter must alter the output distribution")
	}
}

func TestLlamaLoaderStub(t *testing.T) {
	if llamaBuilt {
		t.Skip("built with llama support")
	}
	_, err := Bind(NewLlamaLoader(2048, 4), Descriptor{Path: "/x.gguf", Family: FamilyCausal}, nil, LoadOptions{})
	if err == nil || !IsModelLoad(err) {
		t.Fatalf("expected model load failure from stub, got %v", err)
	}
}

func floats32Equal(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
