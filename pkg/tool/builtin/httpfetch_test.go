package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentflow/core/pkg/tool"
	"github.com/stretchr/testify/assert"
)

func TestHTTPFetchToolFetchesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body content"))
	}))
	defer srv.Close()

	ft := NewHTTPFetchTool(HTTPFetchConfig{})
	result := ft.Execute(context.Background(), map[string]any{"url": srv.URL})
	assert.Equal(t, tool.StatusSuccess, result.Status)
	assert.Equal(t, "body content", result.Output)
	assert.Equal(t, http.StatusOK, result.Metadata["status_code"])
}

func TestHTTPFetchToolRejectsNonHTTPScheme(t *testing.T) {
	ft := NewHTTPFetchTool(HTTPFetchConfig{})
	result := ft.Execute(context.Background(), map[string]any{"url": "ftp://example.com/file"})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "http(s)")
}

func TestHTTPFetchToolMarksNon2xxAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ft := NewHTTPFetchTool(HTTPFetchConfig{})
	result := ft.Execute(context.Background(), map[string]any{"url": srv.URL})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "404")
}

func TestHTTPFetchToolEnforcesMaxResponseSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1000))
	}))
	defer srv.Close()

	ft := NewHTTPFetchTool(HTTPFetchConfig{MaxResponseSize: 10})
	result := ft.Execute(context.Background(), map[string]any{"url": srv.URL})
	assert.Equal(t, tool.StatusError, result.Status)
	assert.Contains(t, result.Error, "too large")
}
