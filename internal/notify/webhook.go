// Package notify delivers lifecycle events to an outbound webhook
// sink. Delivery is fire-and-forget: a failure is logged and dropped,
// never surfaced to the workflow that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"qaflow/internal/service"
)

const deliveryTimeout = 5 * time.Second

type Webhook struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWebhook(url string, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: deliveryTimeout},
		logger:     logger,
	}
}

func (w *Webhook) Notify(ctx context.Context, event service.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		w.logger.Warn("webhook encode failed", "type", event.Type, "action", event.Action, "error", err)
		return
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("webhook request build failed", "error", err)
		return
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := w.httpClient.Do(request)
	if err != nil {
		w.logger.Warn("webhook delivery failed",
			"type", event.Type, "action", event.Action, "error", err)
		return
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		w.logger.Warn("webhook sink rejected event",
			"type", event.Type, "action", event.Action, "status", response.StatusCode)
	}
}
