package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// poster is satisfied by *httpclient.CircuitBreakerClient.
type poster interface {
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
}

// WebhookSender posts alerts as JSON to an operator webhook.
type WebhookSender struct {
	client poster
	url    string
	logger *slog.Logger
}

// NewWebhookSender creates a WebhookSender posting to url.
func NewWebhookSender(client poster, url string, logger *slog.Logger) *WebhookSender {
	return &WebhookSender{client: client, url: url, logger: logger}
}

// Name returns the channel name.
func (s *WebhookSender) Name() string { return "webhook" }

type webhookBody struct {
	Event string `json:"event"`
	Text  string `json:"text"`
	Alert Alert  `json:"alert"`
}

// Send posts the alert. Any non-2xx response is an error.
func (s *WebhookSender) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookBody{
		Event: "review.report_threshold_reached",
		Text:  alert.Subject(),
		Alert: alert,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	resp, err := s.client.Post(ctx, s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post review alert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("review alert webhook returned %d: %s", resp.StatusCode, snippet)
	}

	s.logger.DebugContext(ctx, "review alert posted", slog.Int64("review_id", alert.ReviewID))
	return nil
}
