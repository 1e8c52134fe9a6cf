package types

// GenerateRequest represents a generation request payload.
type GenerateRequest struct {
	// Required instruction (or raw prompt) to generate a completion for.
	// example: Write a haiku about the ocean.
	Instruction string `json:"instruction" example:"Write a haiku about the ocean."`
	// Optional context consumed by the instruction template's input slot.
	// example: The haiku should mention salt.
	Input string `json:"input,omitempty" example:"The haiku should mention salt."`
	// Template name: "raw" or "instruction". Empty selects the server default.
	// example: instruction
	Template string `json:"template,omitempty" example:"instruction"`
	// Maximum number of new tokens to generate.
	// example: 256
	MaxNewTokens *int `json:"max_new_tokens,omitempty" example:"256"`
	// Sampling temperature (higher = more random). Must be > 0.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability mass, in (0, 1].
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to the K most likely tokens (0 disables).
	// example: 40
	TopK *int `json:"top_k,omitempty" example:"40"`
	// Number of beams. Values > 1 switch to beam search and ignore
	// temperature/top_p/top_k.
	// example: 1
	NumBeams *int `json:"num_beams,omitempty" example:"1"`
	// Penalty applied to already-generated tokens. 1.0 disables.
	// example: 1.1
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty" example:"1.1"`
	// Sampler seed. Identical requests with the same seed reproduce the
	// same stream. 0 or omitted lets the server choose.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: instruction is required
	Error string `json:"error" example:"instruction is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ModelInfo describes the model bound at startup.
type ModelInfo struct {
	// Human-friendly model name.
	// example: llama-7b
	Name string `json:"name" example:"llama-7b"`
	// Model family: causal or seq2seq.
	// example: causal
	Family string `json:"family" example:"causal"`
	// Absolute path of the base weights.
	// example: /home/user/models/llama-7b
	Path string `json:"path" example:"/home/user/models/llama-7b"`
	// Name of the attached low-rank adapter, if any.
	// example: alpaca-lora
	Adapter string `json:"adapter,omitempty" example:"alpaca-lora"`
	// Vocabulary size reported by the backend.
	// example: 32000
	VocabSize int `json:"vocab_size,omitempty" example:"32000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall daemon state (ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Bound model metadata.
	Model ModelInfo `json:"model"`
	// Number of sessions waiting for the device.
	// example: 2
	QueueLen int `json:"queue_len" example:"2"`
	// Maximum queued sessions allowed before rejection (0 = unbounded).
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Number of sessions currently holding the device (0 or 1).
	// example: 1
	Active int `json:"active" example:"1"`
	// Total sessions admitted since start.
	// example: 12
	SessionsTotal uint64 `json:"sessions_total" example:"12"`
	// Total token chunks emitted since start.
	// example: 4096
	TokensTotal uint64 `json:"tokens_total" example:"4096"`
	// Last terminal error observed, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
