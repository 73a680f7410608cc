package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/net/ssrf"
)

// InfraTools returns the default tool set a worker gets when no explicit
// agent was provided: a small set of general-purpose utilities, not tied
// to any one connector.
func InfraTools() []agent.Tool {
	return []agent.Tool{
		&currentTimeTool{},
		&httpRequestTool{client: &http.Client{Timeout: 15 * time.Second}},
	}
}

type currentTimeTool struct{}

func (t *currentTimeTool) Name() string        { return "get_current_time" }
func (t *currentTimeTool) Description() string { return "Returns the current UTC time in RFC 3339 format." }
func (t *currentTimeTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *currentTimeTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Content: time.Now().UTC().Format(time.RFC3339)}, nil
}

type httpRequestInput struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

type httpRequestTool struct {
	client *http.Client
}

func (t *httpRequestTool) Name() string { return "http_request" }
func (t *httpRequestTool) Description() string {
	return "Makes an HTTP request to a public URL and returns the response status and body. Requests to private/internal hosts are blocked."
}
func (t *httpRequestTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]},
			"url": {"type": "string"},
			"headers": {"type": "object"},
			"body": {"type": "string"}
		},
		"required": ["url"]
	}`)
}

const httpRequestMaxBody = 64 * 1024

func (t *httpRequestTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in httpRequestInput
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid input: %v", err), IsError: true}, nil
	}
	if in.Method == "" {
		in.Method = http.MethodGet
	}

	parsed, err := url.Parse(in.URL)
	if err != nil || parsed.Hostname() == "" {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid url: %q", in.URL), IsError: true}, nil
	}
	if err := ssrf.ValidatePublicHostname(parsed.Hostname()); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("request blocked: %v", err), IsError: true}, nil
	}

	var body io.Reader
	if in.Body != "" {
		body = strings.NewReader(in.Body)
	}
	req, err := http.NewRequestWithContext(ctx, in.Method, in.URL, body)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("build request: %v", err), IsError: true}, nil
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("request failed: %v", err), IsError: true}, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, httpRequestMaxBody))
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("read response: %v", err), IsError: true}, nil
	}

	return &agent.ToolResult{
		Content: fmt.Sprintf("status: %d\n\n%s", resp.StatusCode, string(data)),
		IsError: resp.StatusCode >= 400,
	}, nil
}
