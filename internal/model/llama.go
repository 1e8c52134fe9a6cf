//go:build llama

package model

import (
	"context"
	"errors"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// LlamaLoader loads gguf weights through go-llama.cpp. The runtime owns its
// decode loop, so the backend exposes the Generator fast path; an adapter is
// attached through the runtime's lora options against the frozen base.
type LlamaLoader struct {
	ctxSize int
	threads int
}

func NewLlamaLoader(ctxSize, threads int) *LlamaLoader {
	return &LlamaLoader{ctxSize: ctxSize, threads: threads}
}

func (l *LlamaLoader) Load(desc Descriptor, adapter *AdapterDescriptor, opts LoadOptions) (Backend, error) {
	if desc.Family != FamilyCausal {
		return nil, ErrModelLoad(desc.Path, errors.New("llama backend supports causal models only"))
	}
	mo := []llama.ModelOption{llama.SetContext(l.ctxSize)}
	if adapter != nil {
		mo = append(mo, llama.SetLoraAdapter(adapter.Path), llama.SetLoraBase(desc.Path))
	}
	m, err := llama.New(desc.Path, mo...)
	if err != nil {
		return nil, ErrModelLoad(desc.Path, err)
	}
	return &llamaBackend{model: m, threads: l.threads}, nil
}

type llamaBackend struct {
	model   *llama.LLama
	threads int
}

func (b *llamaBackend) Close() error {
	if b.model != nil {
		b.model.Free()
		b.model = nil
	}
	return nil
}

func (b *llamaBackend) Generate(ctx context.Context, prompt string, opts GenerateOptions, onToken func(string) error) (string, error) {
	if b.model == nil {
		return "", errors.New("llama model not initialized")
	}
	var tokenErr error
	b.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if err := onToken(tok); err != nil {
			tokenErr = err
			return false
		}
		return true
	})
	po := []llama.PredictOption{
		llama.SetTokens(opts.MaxNewTokens),
		llama.SetThreads(maxInt(1, b.threads)),
		llama.SetTemperature(float32(opts.Temperature)),
		llama.SetTopP(float32(opts.TopP)),
		llama.SetTopK(opts.TopK),
		llama.SetPenalty(float32(opts.RepetitionPenalty)),
	}
	if opts.Seed != 0 {
		po = append(po, llama.SetSeed(opts.Seed))
	}
	text, err := b.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if tokenErr != nil {
			return "", tokenErr
		}
		return "", err
	}
	return text, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
