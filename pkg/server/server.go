// Package server implements the HTTP surface of C11's pipeline (C2 in
// spec.md's component table): the chat endpoint that streams or buffers
// an orchestrator turn, and the health endpoints the deployment
// environment polls. Grounded on the teacher's pkg/server/http.go (the
// Server struct holding *http.Server plus its dependencies, functional
// options, Start/Shutdown with a context-bound graceful-stop select)
// and pkg/transport/http_metrics_middleware.go (chi router, a
// Flush-aware response writer so SSE keeps working under middleware).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentflow/core/pkg/llm"
	"github.com/agentflow/core/pkg/observability"
	"github.com/agentflow/core/pkg/orchestrator"
)

// knownBackends lists every LLM backend spec.md §4.6 recognizes, used
// to build the /health/llm report even for backends with zero
// registered adapters.
var knownBackends = []string{"openai", "anthropic", "gemini", "ollama", "openrouter"}

// Orchestrator is the subset of pkg/orchestrator.Orchestrator the
// server depends on.
type Orchestrator interface {
	ProcessMessage(ctx context.Context, conversationID, userText string) (<-chan orchestrator.Chunk, error)
}

// Pinger is the subset of a store the health endpoint depends on to
// report database connectivity, satisfied structurally by
// pkg/store.MongoStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the server's own settings, separate from the runtime
// config file's broader Config type so this package stays independent
// of pkg/config.
type Config struct {
	Host string
	Port int
}

// Address returns the host:port the server listens on.
func (c Config) Address() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Server is the agentflow HTTP server: one chat endpoint plus health
// checks, per spec.md §4's "Inbound: HTTP API" surface.
type Server struct {
	cfg           Config
	orchestrator  Orchestrator
	llmManager    *llm.Manager
	db            Pinger
	observability *observability.Manager
	httpServer    *http.Server
}

// Option configures optional Server dependencies, mirroring the
// teacher's HTTPServerOption pattern.
type Option func(*Server)

// WithObservability wires a tracing/metrics Manager into the
// middleware chain. Omitted, requests are neither traced nor measured.
func WithObservability(obs *observability.Manager) Option {
	return func(s *Server) { s.observability = obs }
}

// New constructs a Server. db may be nil when no persistence layer is
// wired (tests); in that case /health reports the database as skipped
// rather than failing.
func New(cfg Config, orch Orchestrator, llmManager *llm.Manager, db Pinger, opts ...Option) *Server {
	s := &Server{cfg: cfg, orchestrator: orch, llmManager: llmManager, db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully. Mirrors the teacher's Start(ctx): a background
// ListenAndServe feeding an error channel, raced against ctx.Done().
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses may run arbitrarily long
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("http server starting", "address", s.cfg.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the server, giving in-flight requests 10s
// to finish (longer than the teacher's 5s, since SSE responses can be
// mid-stream).
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	slog.Info("http server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// Address returns the address the server is configured to listen on.
func (s *Server) Address() string {
	return s.cfg.Address()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	if s.observability != nil {
		r.Use(observability.HTTPMiddleware(s.observability.Tracer(), s.observability.Metrics()))
	}

	r.Post("/conversations/{id}/messages", s.handlePostMessage)
	r.Get("/health", s.handleHealth)
	r.Get("/health/llm", s.handleHealthLLM)

	if s.observability != nil && s.observability.MetricsEnabled() {
		r.Handle(s.observability.MetricsEndpoint(), s.observability.MetricsHandler())
	}

	return r
}

// loggingMiddleware logs request method/path/duration. Deliberately
// does not wrap the ResponseWriter (the teacher's comment on its own
// loggingMiddleware notes wrapping breaks http.Flusher, which the SSE
// path here needs).
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

type postMessageRequest struct {
	Content string `json:"content"`
	Stream  bool   `json:"stream"`
}

// chunkDTO is the wire shape of an orchestrator.Chunk: llm.Chunk's Err
// field isn't itself JSON-serializable, so the SSE/buffered encodings
// both go through this type instead of marshaling Chunk directly.
type chunkDTO struct {
	Type         orchestrator.ChunkType `json:"type"`
	Text         string                 `json:"text,omitempty"`
	ToolCall     *llm.ToolCall          `json:"tool_call,omitempty"`
	InputTokens  int                    `json:"input_tokens,omitempty"`
	OutputTokens int                    `json:"output_tokens,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

func toChunkDTO(c orchestrator.Chunk) chunkDTO {
	dto := chunkDTO{Type: c.Type, Text: c.Text, InputTokens: c.InputTokens, OutputTokens: c.OutputTokens}
	if c.Type == orchestrator.ChunkToolCall {
		tc := c.ToolCall
		dto.ToolCall = &tc
	}
	if c.Err != nil {
		dto.Error = c.Err.Error()
	}
	return dto
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type bufferedResponse struct {
	Content   string         `json:"content"`
	ToolCalls []llm.ToolCall `json:"tool_calls"`
	Usage     usage          `json:"usage"`
}

// handlePostMessage implements spec.md's
// "POST /conversations/{id}/messages" — SSE when stream=true, a single
// buffered JSON object when stream=false.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	chunks, err := s.orchestrator.ProcessMessage(r.Context(), conversationID, req.Content)
	if err != nil {
		http.Error(w, "failed to process message: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Stream {
		s.streamSSE(w, r, chunks)
		return
	}
	s.writeBuffered(w, chunks)
}

// streamSSE frames every Chunk as an `event: <type>` / `data: <json>`
// pair and flushes after each one, per spec.md's SSE requirement.
func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request, chunks <-chan orchestrator.Chunk) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)

	for {
		select {
		case chunk, open := <-chunks:
			if !open {
				return
			}
			data, err := json.Marshal(toChunkDTO(chunk))
			if err != nil {
				slog.Error("sse: marshal chunk failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", chunk.Type, data)
			if ok {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeBuffered drains the stream server-side and returns the
// accumulated {content, tool_calls, usage} shape.
func (s *Server) writeBuffered(w http.ResponseWriter, chunks <-chan orchestrator.Chunk) {
	var resp bufferedResponse
	var streamErr error

	for chunk := range chunks {
		switch chunk.Type {
		case orchestrator.ChunkText:
			resp.Content += chunk.Text
		case orchestrator.ChunkToolCall:
			resp.ToolCalls = append(resp.ToolCalls, chunk.ToolCall)
		case orchestrator.ChunkDone:
			resp.Usage = usage{InputTokens: chunk.InputTokens, OutputTokens: chunk.OutputTokens}
		case orchestrator.ChunkError:
			streamErr = chunk.Err
		}
	}

	if streamErr != nil {
		http.Error(w, "stream failed: "+streamErr.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// handleHealth reports overall status plus a DB ping. Causes no state
// change, per spec.md's idempotent-health invariant.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "skipped"}

	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.db.Ping(pingCtx); err != nil {
			resp.Status = "degraded"
			resp.Database = "error: " + err.Error()
		} else {
			resp.Database = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

type backendHealth struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// handleHealthLLM reports per-backend availability via
// llm.Manager.IsAvailable, the non-throwing probe spec.md §4.6
// describes.
func (s *Server) handleHealthLLM(w http.ResponseWriter, r *http.Request) {
	report := make(map[string]backendHealth, len(knownBackends))
	for _, backend := range knownBackends {
		available, reason := s.llmManager.IsAvailable(backend)
		report[backend] = backendHealth{Available: available, Reason: reason}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
