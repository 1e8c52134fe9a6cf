// Package session serializes generation requests onto the single compute
// device: FIFO admission, exclusive device ownership, cooperative
// cancellation, and ordered chunk streams with an explicit terminal marker.
package session

import (
	"sync"

	"instructd/internal/engine"
)

// State is the lifecycle state of one generation session.
type State string

const (
	StateQueued    State = "queued"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// ChunkKind discriminates stream events.
type ChunkKind int

const (
	// ChunkText carries an incremental text fragment.
	ChunkText ChunkKind = iota
	// ChunkDone terminates a completed stream; Text holds the final text.
	ChunkDone
	// ChunkCancelled terminates a cancelled or timed-out stream.
	ChunkCancelled
	// ChunkError terminates a failed stream.
	ChunkError
)

// Chunk is one ordered event of a session's output stream. The stream is
// append-only and ends with exactly one terminal chunk, after which the
// channel is closed.
type Chunk struct {
	Kind       ChunkKind
	Text       string
	StopReason engine.StopReason
	// Stable error kind and message, set on ChunkError.
	ErrKind string
	Message string
}

// Terminal reports whether the chunk ends the stream.
func (c Chunk) Terminal() bool { return c.Kind != ChunkText }

// Session is the live state of one in-flight generation.
type Session struct {
	id     string
	prompt string
	params engine.Params

	mu        sync.Mutex
	state     State
	cancelled bool
	interrupt func() // cancels the active run; nil while queued

	ch chan Chunk
}

// ID returns the session handle used by Cancel.
func (s *Session) ID() string { return s.id }

// Chunks returns the ordered output stream. The channel is closed after the
// terminal chunk.
func (s *Session) Chunks() <-chan Chunk { return s.ch }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// markCancelled flags the session and interrupts the active run if one is
// underway. Returns the state observed at the time of the call.
func (s *Session) markCancelled() State {
	s.mu.Lock()
	st := s.state
	s.cancelled = true
	intr := s.interrupt
	s.mu.Unlock()
	if intr != nil {
		intr()
	}
	return st
}

func (s *Session) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
