package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qaflow/internal/service"
)

func TestWebhook_DeliversEvent(t *testing.T) {
	var received service.Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))
	defer server.Close()

	webhook := NewWebhook(server.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	webhook.Notify(context.Background(), service.Event{
		Type:      "pull_request",
		Action:    "qa_tests_merged",
		EntityID:  "pr1",
		Actor:     "lead",
		Timestamp: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "pull_request", received.Type)
	assert.Equal(t, "qa_tests_merged", received.Action)
	assert.Equal(t, "pr1", received.EntityID)
}

func TestWebhook_FailuresAreSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// A rejecting sink and an unreachable one must both come back quietly.
	NewWebhook(server.URL, logger).Notify(context.Background(), service.Event{Type: "issue", Action: "escalated"})
	NewWebhook("http://127.0.0.1:1", logger).Notify(context.Background(), service.Event{Type: "issue", Action: "escalated"})
}
