package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"instructd/internal/engine"
	"instructd/internal/model"
	"instructd/internal/prompt"
	"instructd/pkg/types"
)

// drainTimeout bounds how long a terminal chunk waits for a consumer that
// stopped reading.
const drainTimeout = 5 * time.Second

// Config encapsulates manager tunables.
type Config struct {
	// MaxQueueDepth bounds the number of queued sessions; 0 selects the
	// unbounded policy (every admitted request eventually runs, FIFO).
	MaxQueueDepth int
	// SessionTimeout is the per-session wall-clock budget; 0 disables it.
	SessionTimeout time.Duration
	// DefaultTemplate is used when a request omits the template name.
	DefaultTemplate prompt.Template
	// Defaults fill sampling parameters a request omits.
	Defaults engine.Params
}

// Manager owns the single compute device. At most one session is ACTIVE
// against it at any instant; the rest wait in FIFO order. The BoundModel is
// held by reference for the process lifetime and never mutated here.
type Manager struct {
	bm  *model.BoundModel
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	waiting  []*Session
	active   *Session
	sessions map[string]*Session
	seq      uint64
	lastErr  string
	wake     chan struct{}

	sessionsTotal atomic.Uint64
	tokensTotal   atomic.Uint64

	baseCtx   context.Context
	stop      context.CancelFunc
	done      chan struct{}
	startTime time.Time
}

// New constructs a Manager around the bound model and starts its dispatch
// loop. Close must be called at shutdown.
func New(bm *model.BoundModel, cfg Config, log zerolog.Logger) *Manager {
	if cfg.Defaults == (engine.Params{}) {
		cfg.Defaults = engine.DefaultParams()
	}
	if cfg.DefaultTemplate == "" {
		cfg.DefaultTemplate = prompt.TemplateRaw
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		bm:        bm,
		cfg:       cfg,
		log:       log,
		sessions:  make(map[string]*Session),
		wake:      make(chan struct{}, 1),
		baseCtx:   ctx,
		stop:      cancel,
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	go m.dispatch()
	return m
}

// Close stops the dispatch loop and cancels the active session, if any.
func (m *Manager) Close() {
	m.stop()
	<-m.done
}

// Submit validates the request, formats the prompt, and enqueues a session.
// Validation failures and QueueFull are returned synchronously without
// consuming any device time.
func (m *Manager) Submit(req types.GenerateRequest) (*Session, error) {
	tmpl := m.cfg.DefaultTemplate
	if req.Template != "" {
		// Unknown names flow into Format, which rejects them as template
		// usage errors.
		tmpl = prompt.Template(req.Template)
	}
	formatted, err := prompt.Format(req.Instruction, req.Input, tmpl)
	if err != nil {
		return nil, err
	}
	params := m.mergeParams(req)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.cfg.MaxQueueDepth > 0 && len(m.waiting) >= m.cfg.MaxQueueDepth {
		m.mu.Unlock()
		queueFullTotal.Inc()
		return nil, queueFullError{depth: m.cfg.MaxQueueDepth}
	}
	m.seq++
	s := &Session{
		id:     fmt.Sprintf("s-%d", m.seq),
		prompt: formatted,
		params: params,
		state:  StateQueued,
		ch:     make(chan Chunk, 16),
	}
	m.sessions[s.id] = s
	m.waiting = append(m.waiting, s)
	queueDepth.Set(float64(len(m.waiting)))
	m.mu.Unlock()

	m.sessionsTotal.Add(1)
	m.log.Debug().Str("session_id", s.id).Int("queue_len", m.QueueLen()).Msg("session queued")
	m.kick()
	return s, nil
}

// Cancel withdraws a session. A queued session transitions straight to
// CANCELLED without ever touching the device; an active one is interrupted
// at the next iteration boundary.
func (m *Manager) Cancel(id string) error {
	s, err := m.Lookup(id)
	if err != nil {
		return err
	}
	st := s.markCancelled()
	m.log.Debug().Str("session_id", id).Str("state", string(st)).Msg("cancel requested")
	if st == StateQueued {
		m.kick()
	}
	return nil
}

// Lookup returns a live session by handle. Terminated sessions are dropped
// from the index when their stream closes, so a stale handle is NotFound.
func (m *Manager) Lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, notFoundError{id: id}
}

// QueueLen reports the number of sessions waiting for the device.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

// Ready reports whether the manager can accept work.
func (m *Manager) Ready() bool { return m.bm != nil }

// ModelInfo describes the bound model for the HTTP layer.
func (m *Manager) ModelInfo() types.ModelInfo {
	return types.ModelInfo{
		Name:      m.bm.Name(),
		Family:    string(m.bm.Family()),
		Path:      m.bm.Path(),
		Adapter:   m.bm.AdapterName(),
		VocabSize: m.bm.VocabSize(),
	}
}

// Status builds the /status projection.
func (m *Manager) Status() types.StatusResponse {
	m.mu.Lock()
	queueLen := len(m.waiting)
	active := 0
	if m.active != nil {
		active = 1
	}
	lastErr := m.lastErr
	m.mu.Unlock()
	return types.StatusResponse{
		State:          "ready",
		Model:          m.ModelInfo(),
		QueueLen:       queueLen,
		MaxQueueDepth:  m.cfg.MaxQueueDepth,
		Active:         active,
		SessionsTotal:  m.sessionsTotal.Load(),
		TokensTotal:    m.tokensTotal.Load(),
		LastError:      lastErr,
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
}

func (m *Manager) mergeParams(req types.GenerateRequest) engine.Params {
	p := m.cfg.Defaults
	if req.MaxNewTokens != nil {
		p.MaxNewTokens = *req.MaxNewTokens
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	if req.TopK != nil {
		p.TopK = *req.TopK
	}
	if req.NumBeams != nil {
		p.NumBeams = *req.NumBeams
	}
	if req.RepetitionPenalty != nil {
		p.RepetitionPenalty = *req.RepetitionPenalty
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	}
	return p
}

func (m *Manager) kick() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// dispatch is the single goroutine allowed to drive the device. Running
// sessions one at a time here is what enforces exclusive ownership and FIFO
// activation order.
func (m *Manager) dispatch() {
	defer close(m.done)
	for {
		s := m.next()
		if s == nil {
			select {
			case <-m.wake:
				continue
			case <-m.baseCtx.Done():
				m.failPending()
				return
			}
		}
		if s.isCancelled() {
			m.finish(s, StateCancelled, Chunk{Kind: ChunkCancelled, StopReason: engine.StopCancelled})
			continue
		}
		m.run(s)
		select {
		case <-m.baseCtx.Done():
			m.failPending()
			return
		default:
		}
	}
}

// next pops the head of the wait queue, or nil when it is empty.
func (m *Manager) next() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.waiting) == 0 {
		return nil
	}
	s := m.waiting[0]
	m.waiting = m.waiting[1:]
	queueDepth.Set(float64(len(m.waiting)))
	return s
}

// failPending terminates every queued session at shutdown.
func (m *Manager) failPending() {
	for {
		s := m.next()
		if s == nil {
			return
		}
		m.finish(s, StateCancelled, Chunk{Kind: ChunkCancelled, StopReason: engine.StopCancelled})
	}
}

// finish records the terminal state, closes the stream, and drops the session
// from the index so terminated sessions do not accumulate. The send tolerates
// an abandoned consumer: after the drain window the terminal chunk is dropped
// and the close alone marks the end.
func (m *Manager) finish(s *Session, state State, terminal Chunk) {
	s.setState(state)
	select {
	case s.ch <- terminal:
	case <-time.After(drainTimeout):
		m.log.Warn().Str("session_id", s.id).Msg("consumer gone, dropping terminal chunk")
	}
	close(s.ch)
	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
	sessionsByState.WithLabelValues(string(state)).Inc()
}

// run executes one session against the device and emits its terminal chunk.
func (m *Manager) run(s *Session) {
	ctx := m.baseCtx
	var cancel context.CancelFunc
	if m.cfg.SessionTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.cfg.SessionTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	s.state = StateActive
	s.interrupt = cancel
	alreadyCancelled := s.cancelled
	s.mu.Unlock()
	if alreadyCancelled {
		m.finish(s, StateCancelled, Chunk{Kind: ChunkCancelled, StopReason: engine.StopCancelled})
		return
	}

	m.mu.Lock()
	m.active = s
	m.mu.Unlock()
	activeSessions.Set(1)
	start := time.Now()
	m.log.Info().Str("session_id", s.id).Int("max_new_tokens", s.params.MaxNewTokens).
		Int("num_beams", s.params.NumBeams).Msg("session active")

	onChunk := func(frag string) error {
		m.tokensTotal.Add(1)
		tokensTotal.Inc()
		select {
		case s.ch <- Chunk{Kind: ChunkText, Text: frag}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	final, reason, err := engine.Run(ctx, m.bm, s.prompt, s.params, onChunk)

	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
	activeSessions.Set(0)

	var terminal Chunk
	var state State
	switch {
	case err != nil && ctx.Err() == nil:
		state = StateFailed
		terminal = Chunk{Kind: ChunkError, ErrKind: errKind(err), Message: err.Error()}
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.log.Error().Str("session_id", s.id).Err(err).Dur("dur", time.Since(start)).Msg("session failed")
	case reason == engine.StopCancelled || reason == engine.StopTimeout || ctx.Err() != nil:
		state = StateCancelled
		if reason != engine.StopCancelled && reason != engine.StopTimeout {
			reason = engine.StopCancelled
		}
		terminal = Chunk{Kind: ChunkCancelled, StopReason: reason}
		m.log.Info().Str("session_id", s.id).Str("stop_reason", string(reason)).
			Dur("dur", time.Since(start)).Msg("session cancelled")
	default:
		state = StateCompleted
		terminal = Chunk{Kind: ChunkDone, Text: prompt.ExtractResponse(final), StopReason: reason}
		m.log.Info().Str("session_id", s.id).Str("stop_reason", string(reason)).
			Dur("dur", time.Since(start)).Msg("session completed")
	}
	m.finish(s, state, terminal)
}

// errKind maps an error to its stable wire-level kind.
func errKind(err error) string {
	switch {
	case prompt.IsInvalidTemplateUsage(err):
		return "invalid_template_usage"
	case engine.IsInvalidSamplingParams(err):
		return "invalid_sampling_params"
	case engine.IsDecodingFailure(err):
		return "decoding_failure"
	case model.IsModelLoad(err):
		return "model_load_failure"
	case model.IsDeviceOutOfMemory(err):
		return "device_out_of_memory"
	case IsQueueFull(err):
		return "queue_full"
	default:
		return "internal"
	}
}
