package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/slug"
)

// TopicOrderCompleted is published by the order service once an order is
// delivered; every line item becomes a review invite.
var TopicOrderCompleted = pkgkafka.Topic("order", "completed")

// ConsumerGroupID is the consumer group for the review service.
const ConsumerGroupID = "review-service"

// orderCompletedPayload mirrors the fields of the order service payload this
// service reads.
type orderCompletedPayload struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Items  []struct {
		ProductID string `json:"product_id"`
		Name      string `json:"name"`
	} `json:"items"`
}

// InviteIssuer issues a signed invite for one account and product.
type InviteIssuer interface {
	IssueForOrder(ctx context.Context, orderID, accountID, productID, slug string) (domain.Invite, error)
}

// ConsumerHandler turns completed orders into review invites.
type ConsumerHandler struct {
	invites InviteIssuer
	issued  pkgkafka.IdempotencyStore
	logger  *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler. issued remembers
// which products of an order already got an invite, so a redelivered order
// only retries the products that failed.
func NewConsumerHandler(invites InviteIssuer, issued pkgkafka.IdempotencyStore, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{invites: invites, issued: issued, logger: logger}
}

// Handle processes an incoming Kafka event based on its event type.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicOrderCompleted:
		return h.handleOrderCompleted(ctx, event)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (h *ConsumerHandler) handleOrderCompleted(ctx context.Context, event *pkgkafka.Event) error {
	var payload orderCompletedPayload
	if err := event.UnmarshalData(&payload); err != nil {
		// Redelivery cannot fix a payload that does not decode.
		h.logger.ErrorContext(ctx, "dropping undecodable order.completed event",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if payload.UserID == "" {
		h.logger.WarnContext(ctx, "order.completed event without user_id",
			slog.String("event_id", event.EventID),
			slog.String("order_id", payload.ID),
		)
		return nil
	}

	seen := make(map[string]struct{}, len(payload.Items))
	var (
		errs    []error
		skipped int
	)
	for _, item := range payload.Items {
		if item.ProductID == "" {
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}

		key := issuedKey(event.EventID, item.ProductID)
		if h.alreadyIssued(ctx, key) {
			skipped++
			continue
		}

		s := slug.Generate(item.Name)
		if s == "" {
			s = slug.Generate(item.ProductID)
		}
		if _, err := h.invites.IssueForOrder(ctx, payload.ID, payload.UserID, item.ProductID, s); err != nil {
			errs = append(errs, fmt.Errorf("issue invite for product %s: %w", item.ProductID, err))
			continue
		}
		h.markIssued(ctx, key)
	}

	h.logger.InfoContext(ctx, "review invites issued for order",
		slog.String("order_id", payload.ID),
		slog.Int("products", len(seen)),
		slog.Int("already_issued", skipped),
		slog.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

// issuedKey is empty when the event has no id to track it by.
func issuedKey(eventID, productID string) string {
	if eventID == "" {
		return ""
	}
	return "invite:" + eventID + ":" + productID
}

func (h *ConsumerHandler) alreadyIssued(ctx context.Context, key string) bool {
	if key == "" || h.issued == nil {
		return false
	}
	ok, err := h.issued.Contains(ctx, key)
	if err != nil {
		h.logger.WarnContext(ctx, "issued invite lookup failed, issuing anyway",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

func (h *ConsumerHandler) markIssued(ctx context.Context, key string) {
	if key == "" || h.issued == nil {
		return
	}
	if err := h.issued.Add(ctx, key); err != nil {
		h.logger.WarnContext(ctx, "failed to record issued invite",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// NewConsumer creates the order.completed consumer. Redelivered events are
// skipped through store, and events that keep failing go to dlq.
func NewConsumer(brokers []string, handler *ConsumerHandler, store pkgkafka.IdempotencyStore, dlq *pkgkafka.DLQProducer, logger *slog.Logger) *pkgkafka.Consumer {
	cfg := pkgkafka.ConsumerConfig{
		Brokers:  brokers,
		GroupID:  ConsumerGroupID,
		Topic:    TopicOrderCompleted,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	return pkgkafka.NewConsumer(cfg, pkgkafka.IdempotentHandler(store, handler.Handle, logger), dlq, logger)
}
