package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentflow/core/pkg/httpclient"
	"github.com/agentflow/core/pkg/tool"
)

// HTTPFetchConfig bounds an HTTPFetchTool's response size and timeout,
// grounded on the teacher's WebRequestConfig.
type HTTPFetchConfig struct {
	MaxResponseSize int64 // bytes, default 5MiB
	Timeout         time.Duration
	UserAgent       string
}

// HTTPFetchTool performs capped GET requests, per spec.md §4.7.
type HTTPFetchTool struct {
	cfg    HTTPFetchConfig
	client *httpclient.Client
}

// NewHTTPFetchTool constructs an HTTPFetchTool from cfg.
func NewHTTPFetchTool(cfg HTTPFetchConfig) *HTTPFetchTool {
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = 5 * 1024 * 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "agentflow-core/1.0"
	}
	return &HTTPFetchTool{
		cfg:    cfg,
		client: httpclient.New(httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})),
	}
}

func (t *HTTPFetchTool) Info() tool.Info {
	return tool.Info{
		Name:        "http_fetch",
		Description: "Fetch a URL over HTTP(S) via GET, subject to a response-size cap.",
		Parameters: []tool.ParameterSchema{
			{Name: "url", Type: "string", Description: "URL to fetch (http or https only)", Required: true},
		},
	}
}

func (t *HTTPFetchTool) Execute(ctx context.Context, args map[string]any) tool.Result {
	started := time.Now()

	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return tool.Result{Status: tool.StatusError, Error: "url parameter is required", StartedAt: started, CompletedAt: time.Now()}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return tool.Result{Status: tool.StatusError, Error: "only http(s) URLs are allowed", StartedAt: started, CompletedAt: time.Now()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return tool.Result{Status: tool.StatusError, Error: fmt.Sprintf("build request failed: %v", err), StartedAt: started, CompletedAt: time.Now()}
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return tool.Result{Status: tool.StatusError, Error: fmt.Sprintf("request failed: %v", err), StartedAt: started, CompletedAt: time.Now()}
	}
	defer resp.Body.Close()

	if resp.ContentLength > t.cfg.MaxResponseSize {
		return tool.Result{
			Status: tool.StatusError,
			Error:  fmt.Sprintf("response too large: %d bytes (max %d)", resp.ContentLength, t.cfg.MaxResponseSize),
			StartedAt: started, CompletedAt: time.Now(),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.cfg.MaxResponseSize+1))
	if err != nil {
		return tool.Result{Status: tool.StatusError, Error: fmt.Sprintf("read body failed: %v", err), StartedAt: started, CompletedAt: time.Now()}
	}
	if int64(len(body)) > t.cfg.MaxResponseSize {
		return tool.Result{
			Status: tool.StatusError,
			Error:  fmt.Sprintf("response exceeded %d byte cap while streaming", t.cfg.MaxResponseSize),
			StartedAt: started, CompletedAt: time.Now(),
		}
	}

	headers := make(map[string]any, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ", ")
	}

	completed := time.Now()
	status := tool.StatusSuccess
	var errMsg string
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status = tool.StatusError
		errMsg = fmt.Sprintf("non-2xx status: %d", resp.StatusCode)
	}

	return tool.Result{
		Status: status,
		Output: string(body),
		Error:  errMsg,
		Metadata: map[string]any{
			"status_code": resp.StatusCode,
			"headers":     headers,
			"final_url":   resp.Request.URL.String(),
		},
		StartedAt: started, CompletedAt: completed,
	}
}
