package types

// StreamEvent is one NDJSON line of a generation stream. Fragment lines set
// only Text; exactly one terminal line (done, cancelled, or error) ends the
// stream.
type StreamEvent struct {
	// Incremental text fragment.
	Text string `json:"text,omitempty"`
	// Set on the terminal line of a completed generation.
	Done bool `json:"done,omitempty"`
	// Set on the terminal line of a cancelled generation.
	Cancelled bool `json:"cancelled,omitempty"`
	// Why generation stopped: eos, length, cancelled, timeout.
	StopReason string `json:"stop_reason,omitempty"`
	// Stable error kind on a terminal error line.
	Error string `json:"error,omitempty"`
	// Human-readable error message.
	Message string `json:"message,omitempty"`
}
