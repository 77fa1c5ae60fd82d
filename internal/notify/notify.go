// Package notify tells administrators about reviews that need attention.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Alert says a review has collected enough reports to need a human look.
type Alert struct {
	ReviewID    int64  `json:"review_id,string"`
	ProductID   string `json:"product_id"`
	ReportCount int    `json:"report_count"`
	LastReason  string `json:"last_reason"`
	Excerpt     string `json:"excerpt"`
}

// Subject is a one-line summary of the alert.
func (a Alert) Subject() string {
	return fmt.Sprintf("Review %d on product %s reported %d times", a.ReviewID, a.ProductID, a.ReportCount)
}

// Text is the plain-text body of the alert.
func (a Alert) Text() string {
	return fmt.Sprintf("%s.\n\nLatest reason: %s\n\n%s\n\nModerate it at /api/v1/admin/reviews/%s/moderate.\n",
		a.Subject(), a.LastReason, a.Excerpt, strconv.FormatInt(a.ReviewID, 10))
}

// Sender delivers alerts through one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// LogSender writes alerts to the service log. It is the default channel.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the channel name.
func (s *LogSender) Name() string { return "log" }

// Send logs the alert at warn level.
func (s *LogSender) Send(ctx context.Context, alert Alert) error {
	s.logger.WarnContext(ctx, "review report threshold reached",
		slog.Int64("review_id", alert.ReviewID),
		slog.String("product_id", alert.ProductID),
		slog.Int("report_count", alert.ReportCount),
		slog.String("last_reason", alert.LastReason),
	)
	return nil
}

// Excerpt shortens a review body for an alert.
func Excerpt(body string, n int) string {
	r := []rune(body)
	if len(r) <= n {
		return body
	}
	return string(r[:n]) + "…"
}
