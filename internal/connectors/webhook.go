package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haasonsaas/nexus/internal/channels"
	"github.com/haasonsaas/nexus/pkg/models"
)

// WebhookConnector delivers messages by POSTing a JSON envelope to a
// configured URL. It is the one illustrative connector kept in-tree to
// exercise the Connector contract end to end; platform-specific connectors
// (Slack, Discord, etc.) are out of this module's scope.
type WebhookConnector struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewWebhookConnector creates a webhook connector posting to the given URL.
func NewWebhookConnector(name, url string, httpClient *http.Client) *WebhookConnector {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookConnector{name: name, url: url, httpClient: httpClient}
}

// Name implements Connector.
func (w *WebhookConnector) Name() string {
	return w.name
}

type webhookPayload struct {
	ThreadID string `json:"thread_id"`
	Role     string `json:"role"`
	Content  string `json:"content"`
	SentAt   string `json:"sent_at"`
}

// Send implements Connector.
func (w *WebhookConnector) Send(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return NewError(w.name, channels.ErrInvalidInput("nil message", nil))
	}

	body, err := json.Marshal(webhookPayload{
		ThreadID: msg.ThreadID,
		Role:     string(msg.Role),
		Content:  msg.Content,
		SentAt:   msg.SentAt.Format(time.RFC3339),
	})
	if err != nil {
		return NewError(w.name, channels.ErrInvalidInput("encode webhook payload", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return NewError(w.name, channels.ErrConfig("build webhook request", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return NewError(w.name, channels.ErrTimeout("webhook request canceled", err))
		}
		return NewError(w.name, channels.ErrConnection("webhook request failed", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewError(w.name, channels.ErrRateLimit("webhook rate limited", nil))
	case resp.StatusCode >= 500:
		return NewError(w.name, channels.ErrUnavailable(fmt.Sprintf("webhook returned %d", resp.StatusCode), nil))
	case resp.StatusCode >= 400:
		return NewError(w.name, channels.ErrInvalidInput(fmt.Sprintf("webhook returned %d", resp.StatusCode), nil))
	}
	return nil
}

// HealthCheck implements Connector by issuing a HEAD request against the
// configured URL.
func (w *WebhookConnector) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.url, nil)
	if err != nil {
		return channels.HealthStatus{Healthy: false, Message: err.Error(), LastCheck: time.Now()}
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return channels.HealthStatus{Healthy: false, Latency: time.Since(start), Message: err.Error(), LastCheck: time.Now()}
	}
	defer resp.Body.Close()
	healthy := resp.StatusCode < 500
	return channels.HealthStatus{
		Healthy:   healthy,
		Latency:   time.Since(start),
		LastCheck: time.Now(),
		Degraded:  resp.StatusCode >= 400 && healthy,
	}
}
