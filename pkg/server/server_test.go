package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/core/pkg/llm"
	"github.com/agentflow/core/pkg/orchestrator"
)

type fakeOrchestrator struct {
	chunks []orchestrator.Chunk
	err    error
}

func (f *fakeOrchestrator) ProcessMessage(ctx context.Context, conversationID, userText string) (<-chan orchestrator.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan orchestrator.Chunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestServer(orch Orchestrator, db Pinger) *Server {
	manager, _ := llm.NewManager(nil)
	return New(Config{Host: "127.0.0.1", Port: 0}, orch, manager, db)
}

func TestHandlePostMessageBufferedCollectsContentAndUsage(t *testing.T) {
	orch := &fakeOrchestrator{chunks: []orchestrator.Chunk{
		{Type: orchestrator.ChunkText, Text: "hello "},
		{Type: orchestrator.ChunkText, Text: "world"},
		{Type: orchestrator.ChunkToolCall, ToolCall: llm.ToolCall{ID: "tc1", Name: "echo"}},
		{Type: orchestrator.ChunkDone, InputTokens: 10, OutputTokens: 5},
	}}
	srv := newTestServer(orch, nil)

	body := bytes.NewBufferString(`{"content":"hi","stream":false}`)
	req := httptest.NewRequest("POST", "/conversations/c1/messages", body)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var resp bufferedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "echo", resp.ToolCalls[0].Name)
}

func TestHandlePostMessageBufferedReturnsErrorOnStreamFailure(t *testing.T) {
	orch := &fakeOrchestrator{chunks: []orchestrator.Chunk{
		{Type: orchestrator.ChunkError, Err: errors.New("boom")},
	}}
	srv := newTestServer(orch, nil)

	body := bytes.NewBufferString(`{"content":"hi","stream":false}`)
	req := httptest.NewRequest("POST", "/conversations/c1/messages", body)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, 500, w.Code)
	assert.Contains(t, w.Body.String(), "boom")
}

func TestHandlePostMessageStreamEmitsSSEFrames(t *testing.T) {
	orch := &fakeOrchestrator{chunks: []orchestrator.Chunk{
		{Type: orchestrator.ChunkText, Text: "hi"},
		{Type: orchestrator.ChunkDone, InputTokens: 1, OutputTokens: 1},
	}}
	srv := newTestServer(orch, nil)

	body := bytes.NewBufferString(`{"content":"hi","stream":true}`)
	req := httptest.NewRequest("POST", "/conversations/c1/messages", body)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	out := w.Body.String()
	assert.Contains(t, out, "event: text")
	assert.Contains(t, out, "event: done")
	assert.True(t, strings.Contains(out, `"text":"hi"`))
}

func TestHandlePostMessageRejectsEmptyContent(t *testing.T) {
	srv := newTestServer(&fakeOrchestrator{}, nil)

	body := bytes.NewBufferString(`{"content":"","stream":false}`)
	req := httptest.NewRequest("POST", "/conversations/c1/messages", body)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestHandleHealthReportsDatabasePing(t *testing.T) {
	srv := newTestServer(&fakeOrchestrator{}, &fakePinger{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)
}

func TestHandleHealthReportsDegradedOnPingFailure(t *testing.T) {
	srv := newTestServer(&fakeOrchestrator{}, &fakePinger{err: errors.New("unreachable")})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, 503, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestHandleHealthLLMReportsPerBackendAvailability(t *testing.T) {
	srv := newTestServer(&fakeOrchestrator{}, nil)

	req := httptest.NewRequest("GET", "/health/llm", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var resp map[string]backendHealth
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp, "openai")
	assert.False(t, resp["openai"].Available)
	assert.NotEmpty(t, resp["openai"].Reason)
}
