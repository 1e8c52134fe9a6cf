package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"instructd/internal/engine"
	"instructd/internal/model"
	"instructd/internal/prompt"
	"instructd/internal/session"
	"instructd/pkg/types"
)

// Stream is the chunk feed of one admitted generation session.
type Stream interface {
	ID() string
	Chunks() <-chan session.Chunk
}

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Submit(req types.GenerateRequest) (Stream, error)
	Cancel(id string) error
	ModelInfo() types.ModelInfo
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Get("/model", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.ModelInfo()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) { handleGenerate(svc, w, r) })

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func handleGenerate(svc Service, w http.ResponseWriter, r *http.Request) {
	// Content-Type check
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// MaxBytesReader errors land here too; 400 avoids leaking size details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeJSONError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	logGenStart(r, lvl, req)

	s, err := svc.Submit(req)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusTooManyRequests {
			IncrementBackpressure("queue_full")
		}
		writeJSONError(w, status, err.Error())
		logGenEnd(r, lvl, status, time.Since(start), err)
		return
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	enc := json.NewEncoder(w)
	if lvl >= LevelDebug {
		enc = json.NewEncoder(newTeeLineWriter(w))
	}

	for {
		select {
		case <-ctx.Done():
			// Client went away or the server is shutting down; release the
			// device and drop the rest of the stream.
			if err := svc.Cancel(s.ID()); err != nil && !session.IsNotFound(err) {
				log.Printf("cancel %s: %v", s.ID(), err)
			}
			logGenEnd(r, lvl, http.StatusOK, time.Since(start), ctx.Err())
			return
		case c, ok := <-s.Chunks():
			if !ok {
				logGenEnd(r, lvl, http.StatusOK, time.Since(start), nil)
				return
			}
			if err := enc.Encode(streamEvent(c)); err != nil {
				// Writer is dead; cancel and bail.
				_ = svc.Cancel(s.ID())
				return
			}
			if flush != nil {
				flush()
			}
		}
	}
}

// streamEvent translates a session chunk into its wire representation.
func streamEvent(c session.Chunk) types.StreamEvent {
	switch c.Kind {
	case session.ChunkDone:
		return types.StreamEvent{Done: true, Text: c.Text, StopReason: string(c.StopReason)}
	case session.ChunkCancelled:
		return types.StreamEvent{Cancelled: true, StopReason: string(c.StopReason)}
	case session.ChunkError:
		return types.StreamEvent{Error: c.ErrKind, Message: c.Message}
	default:
		return types.StreamEvent{Text: c.Text}
	}
}

// statusForError maps well-known service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case prompt.IsInvalidTemplateUsage(err), engine.IsInvalidSamplingParams(err):
		return http.StatusBadRequest
	case session.IsQueueFull(err):
		return http.StatusTooManyRequests
	case model.IsModelLoad(err), model.IsDeviceOutOfMemory(err):
		return http.StatusServiceUnavailable
	default:
		if he, ok := err.(HTTPError); ok {
			return he.StatusCode()
		}
		return http.StatusInternalServerError
	}
}
