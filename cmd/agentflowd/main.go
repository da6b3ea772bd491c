// Copyright 2025 Agentflow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command agentflowd is the composition root: it loads config, wires
// every component spec.md §2 names, and serves the HTTP API until a
// termination signal arrives. Grounded on the teacher's
// cmd/hector/serve.go — load config, build the dependency graph,
// register everything, wait on a signal channel racing the server's own
// error channel, then shut down with a bounded grace context.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentflow/core/pkg/config"
	"github.com/agentflow/core/pkg/embedding"
	"github.com/agentflow/core/pkg/llm"
	"github.com/agentflow/core/pkg/logger"
	"github.com/agentflow/core/pkg/mcp"
	"github.com/agentflow/core/pkg/memory"
	"github.com/agentflow/core/pkg/observability"
	"github.com/agentflow/core/pkg/orchestrator"
	"github.com/agentflow/core/pkg/server"
	"github.com/agentflow/core/pkg/store"
	"github.com/agentflow/core/pkg/tool"
	"github.com/agentflow/core/pkg/tool/builtin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("agentflowd: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger.Init(level, os.Stderr, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoStore, err := store.Connect(ctx, store.Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDB,
	})
	if err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}

	memStore, err := buildMemoryStore(cfg, mongoStore)
	if err != nil {
		return fmt.Errorf("build memory store: %w", err)
	}

	embedder := buildEmbedder(cfg)
	memorySvc := memory.New(memStore, embedder)

	llmManager, err := buildLLMManager(cfg)
	if err != nil {
		return fmt.Errorf("build llm manager: %w", err)
	}

	router := buildToolRouter(ctx, cfg)

	extractor := orchestrator.NewExtraction(mongoStore, mongoStore, llmManager, memorySvc, 20)
	orch := orchestrator.New(mongoStore, mongoStore, memorySvc, llmManager, router, extractor, cfg.ToolDefaultTimeout)

	obs, err := observability.NewManager(ctx, &observability.Config{
		Tracing: observability.TracingConfig{Enabled: cfg.TracingEnabled, Endpoint: cfg.TracingEndpoint},
		Metrics: observability.MetricsConfig{Enabled: cfg.MetricsEnabled},
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	srv := server.New(
		server.Config{Host: cfg.BindHost, Port: cfg.BindPort},
		orch, llmManager, mongoStore,
		server.WithObservability(obs),
	)

	slog.Info("agentflowd: starting", "address", srv.Address())
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("agentflowd: shut down cleanly")
	return nil
}

// buildMemoryStore selects between MongoStore's own Atlas Search vector
// lane and a Qdrant-backed composite, per cfg.VectorBackend. Lexical
// search always comes from Mongo regardless of this choice.
func buildMemoryStore(cfg *config.Config, mongoStore *store.MongoStore) (store.MemoryStore, error) {
	if cfg.VectorBackend != "qdrant" {
		return mongoStore, nil
	}

	vectors, err := store.NewQdrantVectorIndex(store.QdrantConfig{
		Host:       cfg.QdrantHost,
		Port:       cfg.QdrantPort,
		APIKey:     cfg.QdrantAPIKey,
		UseTLS:     cfg.QdrantUseTLS,
		Collection: cfg.QdrantCollection,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	return store.NewQdrantBackedMemoryStore(mongoStore, vectors), nil
}

// buildEmbedder wires the primary embedding provider from
// cfg.EmbeddingProvider, with the other supported provider as a
// fallback when its own credentials happen to be configured too.
func buildEmbedder(cfg *config.Config) *embedding.Client {
	var primary, fallback embedding.Provider

	switch cfg.EmbeddingProvider {
	case "openai":
		primary = embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, "", cfg.EmbeddingModel, cfg.EmbeddingDimension)
		if cfg.LocalLLMURL != "" {
			fallback = embedding.NewOllamaProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimension)
		}
	default:
		primary = embedding.NewOllamaProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimension)
		if cfg.OpenAIAPIKey != "" {
			fallback = embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, "", cfg.EmbeddingModel, cfg.EmbeddingDimension)
		}
	}

	return embedding.New(primary, fallback, cfg.EmbeddingDimension, 16)
}

// buildLLMManager configures one adapter per backend spec.md §4.6
// recognizes. buildAdapter (inside pkg/llm) skips any backend missing
// its credentials, so IsAvailable later reports why rather than this
// call failing outright.
func buildLLMManager(cfg *config.Config) (*llm.Manager, error) {
	return llm.NewManager([]llm.BackendConfig{
		{Backend: "openai", Model: "gpt-4o", APIKey: cfg.OpenAIAPIKey},
		{Backend: "anthropic", Model: "claude-sonnet-4-5", APIKey: cfg.AnthropicAPIKey},
		{Backend: "gemini", Model: "gemini-2.5-flash", APIKey: cfg.GeminiAPIKey},
		{Backend: "openrouter", Model: "openrouter/auto", APIKey: cfg.OpenRouterAPIKey},
		{Backend: "ollama", Model: "llama3.1", BaseURL: cfg.LocalLLMURL},
	})
}

// buildToolRouter registers the three built-in tools (C7) plus any
// remote MCP tools already attached to an empty Manager — the runtime
// carries C8/C9's lifecycle machinery even though this deployment
// starts with no MCP servers configured; operators add them at runtime
// through the Manager, not through static env config.
func buildToolRouter(ctx context.Context, cfg *config.Config) *tool.Router {
	router := tool.NewRouter(cfg.ToolDefaultTimeout)

	fsTool := builtin.NewFilesystemTool(builtin.FilesystemConfig{
		Allow: cfg.FilesystemAllow,
		Deny:  cfg.FilesystemDeny,
	})
	if err := router.Register(fsTool.Info().Name, fsTool); err != nil {
		slog.Error("register filesystem tool", "error", err)
	}

	shellTool := builtin.NewShellTool(builtin.ShellConfig{DefaultTimeout: cfg.ShellTimeout})
	if err := router.Register(shellTool.Info().Name, shellTool); err != nil {
		slog.Error("register shell tool", "error", err)
	}

	fetchTool := builtin.NewHTTPFetchTool(builtin.HTTPFetchConfig{Timeout: cfg.FetchTimeout})
	if err := router.Register(fetchTool.Info().Name, fetchTool); err != nil {
		slog.Error("register http fetch tool", "error", err)
	}

	// mcpManager starts with no servers attached: this deployment has no
	// static MCP server config surface (spec.md names no such knob), so
	// operators attach servers to the Manager at runtime via Add(ctx, ...)
	// rather than through cfg. ctx is threaded through for that future
	// startup-time Add call.
	mcpManager := mcp.NewManager()
	for _, t := range mcpManager.AllTools() {
		if err := router.Register(t.Info().Name, t); err != nil {
			slog.Error("register mcp tool", "name", t.Info().Name, "error", err)
		}
	}

	return router
}
