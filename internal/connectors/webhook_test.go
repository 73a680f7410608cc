package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestWebhookConnectorSend(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conn := NewWebhookConnector("test-webhook", srv.URL, nil)
	msg := &models.Message{ThreadID: "thread-1", Role: models.RoleUser, Content: "hello", SentAt: time.Now()}

	if err := conn.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotBody == "" {
		t.Fatal("expected request body to be recorded")
	}
}

func TestWebhookConnectorSendRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	conn := NewWebhookConnector("test-webhook", srv.URL, nil)
	err := conn.Send(context.Background(), &models.Message{ThreadID: "t", Content: "x"})
	if err == nil {
		t.Fatal("expected error")
	}

	toolErr := ToToolError("webhook", "call-1", err)
	if toolErr.Type != "rate_limit" {
		t.Fatalf("expected rate_limit classification, got %s", toolErr.Type)
	}
	if !toolErr.Retryable {
		t.Fatal("expected rate limit errors to be retryable")
	}
}

func TestWebhookConnectorHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conn := NewWebhookConnector("test-webhook", srv.URL, nil)
	status := conn.HealthCheck(context.Background())
	if !status.Healthy {
		t.Fatalf("expected healthy status, got %+v", status)
	}
}

func TestRegistryHealthCheckAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry()
	reg.Register(NewWebhookConnector("test-webhook", srv.URL, nil))

	results := reg.HealthCheckAll(context.Background(), time.Second)
	status, ok := results["test-webhook"]
	if !ok {
		t.Fatal("expected health result for test-webhook")
	}
	if !status.Healthy {
		t.Fatalf("expected healthy, got %+v", status)
	}
}
