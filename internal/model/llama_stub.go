//go:build !llama

package model

// No-CGO stub for the llama loader, compiled when the 'llama' build tag is
// not set so default builds and CI stay CGO-free. The real loader lives in
// llama.go (tagged 'llama').

import "errors"

var llamaBuilt = false

type LlamaLoader struct {
	ctxSize int
	threads int
}

func NewLlamaLoader(ctxSize, threads int) *LlamaLoader {
	return &LlamaLoader{ctxSize: ctxSize, threads: threads}
}

func (l *LlamaLoader) Load(desc Descriptor, adapter *AdapterDescriptor, opts LoadOptions) (Backend, error) {
	return nil, ErrModelLoad(desc.Path, errors.New("llama support not built (missing 'llama' build tag)"))
}
