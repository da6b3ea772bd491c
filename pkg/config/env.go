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

// Package config loads process-wide configuration from the environment, as
// described in spec.md §6. Loading the CRUD-facing agent/conversation
// configuration itself is an excluded collaborator; this package only
// covers the runtime's own process knobs.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
)

// expandEnvVars resolves ${VAR} and ${VAR:-default} references in s.
func expandEnvVars(s string) string {
	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
	return envBraced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envBraced.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})
}

// LoadEnvFiles loads .env.local then .env into the process environment,
// ignoring missing files. Real environment variables always win: godotenv
// never overwrites a variable that is already set.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Config is the runtime's process-wide configuration, loaded once at
// startup from the environment. Every key has a default except cloud
// credentials, per spec.md §6.
type Config struct {
	// Document store.
	MongoURI string
	MongoDB  string

	// LLM backends.
	LocalLLMURL      string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GeminiAPIKey     string
	OpenRouterAPIKey string

	// Embedding.
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingBaseURL   string

	// Vector search backend: "mongo" (Atlas Search, the default) or
	// "qdrant". LexicalSearch always comes from Mongo regardless of
	// this setting — see pkg/store/qdrant.go.
	VectorBackend    string
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantUseTLS     bool
	QdrantCollection string

	// HTTP server.
	BindHost string
	BindPort int

	// Tool timeouts.
	ToolDefaultTimeout time.Duration
	ShellTimeout       time.Duration
	FetchTimeout       time.Duration
	MCPCallTimeout     time.Duration

	// Filesystem tool sandboxing (spec.md §4.7).
	FilesystemAllow []string
	FilesystemDeny  []string

	// Observability.
	TracingEnabled  bool
	TracingEndpoint string
	MetricsEnabled  bool

	LogLevel  string
	LogFormat string

	Debug bool
}

// Load reads Config from the environment, applying defaults for every
// field except cloud credentials.
func Load() (*Config, error) {
	_ = LoadEnvFiles()

	cfg := &Config{
		MongoURI:           getEnvDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnvDefault("MONGO_DB", "agentflow"),
		LocalLLMURL:        getEnvDefault("LOCAL_LLM_URL", "http://localhost:11434"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		EmbeddingProvider:  getEnvDefault("EMBEDDING_PROVIDER", "ollama"),
		EmbeddingModel:     getEnvDefault("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDimension: getEnvIntDefault("EMBEDDING_DIMENSION", 768),
		EmbeddingBaseURL:   getEnvDefault("EMBEDDING_BASE_URL", "http://localhost:11434"),

		VectorBackend:    getEnvDefault("VECTOR_BACKEND", "mongo"),
		QdrantHost:       getEnvDefault("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvIntDefault("QDRANT_PORT", 6334),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantUseTLS:     getEnvBoolDefault("QDRANT_USE_TLS", false),
		QdrantCollection: getEnvDefault("QDRANT_COLLECTION", "memories"),

		BindHost:           getEnvDefault("BIND_HOST", "0.0.0.0"),
		BindPort:           getEnvIntDefault("BIND_PORT", 8080),
		ToolDefaultTimeout: getEnvDurationDefault("TOOL_DEFAULT_TIMEOUT", 300*time.Second),
		ShellTimeout:       getEnvDurationDefault("SHELL_TIMEOUT", 60*time.Second),
		FetchTimeout:       getEnvDurationDefault("FETCH_TIMEOUT", 30*time.Second),
		MCPCallTimeout:     getEnvDurationDefault("MCP_CALL_TIMEOUT", 30*time.Second),

		FilesystemAllow: getEnvListDefault("FILESYSTEM_ALLOW", nil),
		FilesystemDeny:  getEnvListDefault("FILESYSTEM_DENY", nil),

		TracingEnabled:  getEnvBoolDefault("TRACING_ENABLED", false),
		TracingEndpoint: getEnvDefault("TRACING_ENDPOINT", "localhost:4318"),
		MetricsEnabled:  getEnvBoolDefault("METRICS_ENABLED", true),

		LogLevel:  getEnvDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvDefault("LOG_FORMAT", "text"),

		Debug: getEnvBoolDefault("DEBUG", false),
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return expandEnvVars(v)
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getEnvListDefault splits a comma-separated env var into a trimmed,
// non-empty slice, returning def when the variable is unset.
func getEnvListDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
