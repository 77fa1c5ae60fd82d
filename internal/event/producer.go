package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topics for review domain events.
var (
	TopicReviewSubmitted        = pkgkafka.Topic("review", "submitted")
	TopicReviewModerated        = pkgkafka.Topic("review", "moderated")
	TopicReportThresholdReached = pkgkafka.Topic("review", "report_threshold_reached")
	TopicInviteIssued           = pkgkafka.Topic("review", "invite_issued")
)

// Aggregate types and source identifier for events from this service.
const (
	AggregateTypeReview = "review"
	AggregateTypeInvite = "review_invite"
	SourceReviewService = "review-service"
)

// ReviewSubmittedData is the payload for a review.submitted event.
type ReviewSubmittedData struct {
	ReviewID  string `json:"review_id"`
	ProductID string `json:"product_id"`
	AccountID string `json:"account_id"`
	Rating    int    `json:"rating"`
}

// ReviewModeratedData is the payload for a review.moderated event. The
// previous status makes the event stream an audit trail of moderation.
type ReviewModeratedData struct {
	ReviewID       string        `json:"review_id"`
	ProductID      string        `json:"product_id"`
	PreviousStatus domain.Status `json:"previous_status"`
	Status         domain.Status `json:"status"`
	ModeratedBy    string        `json:"moderated_by,omitempty"`
	ModeratedAt    time.Time     `json:"moderated_at"`
}

// ReportThresholdReachedData is the payload for a
// review.report_threshold_reached event.
type ReportThresholdReachedData struct {
	ReviewID    string `json:"review_id"`
	ProductID   string `json:"product_id"`
	ReportCount int    `json:"report_count"`
	LastReason  string `json:"last_reason"`
}

// InviteIssuedData is the payload for a review.invite_issued event. It
// carries the token so a mailer can deliver it.
type InviteIssuedData struct {
	AccountID string    `json:"account_id"`
	ProductID string    `json:"product_id"`
	Slug      string    `json:"slug"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	OrderID   string    `json:"order_id,omitempty"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. A nil kafka producer turns every
// publish into a no-op, which is how the service runs without a broker.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	if kafka == nil {
		return &Producer{logger: logger}
	}
	return &Producer{kafka: kafka, logger: logger}
}

// PublishReviewSubmitted publishes a review.submitted event.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, review *domain.Review) error {
	id := strconv.FormatInt(review.ID, 10)
	return p.publish(ctx, TopicReviewSubmitted, id, AggregateTypeReview, ReviewSubmittedData{
		ReviewID:  id,
		ProductID: review.ProductID,
		AccountID: review.AccountID,
		Rating:    review.Rating,
	})
}

// PublishReviewModerated publishes a review.moderated event.
func (p *Producer) PublishReviewModerated(ctx context.Context, review *domain.Review, prev domain.Status, moderator string) error {
	id := strconv.FormatInt(review.ID, 10)
	return p.publish(ctx, TopicReviewModerated, id, AggregateTypeReview, ReviewModeratedData{
		ReviewID:       id,
		ProductID:      review.ProductID,
		PreviousStatus: prev,
		Status:         review.Status,
		ModeratedBy:    moderator,
		ModeratedAt:    review.UpdatedAt,
	})
}

// PublishReportThresholdReached publishes a review.report_threshold_reached event.
func (p *Producer) PublishReportThresholdReached(ctx context.Context, review *domain.Review, reason string) error {
	id := strconv.FormatInt(review.ID, 10)
	return p.publish(ctx, TopicReportThresholdReached, id, AggregateTypeReview, ReportThresholdReachedData{
		ReviewID:    id,
		ProductID:   review.ProductID,
		ReportCount: review.ReportCount,
		LastReason:  reason,
	})
}

// PublishInviteIssued publishes a review.invite_issued event keyed by account.
func (p *Producer) PublishInviteIssued(ctx context.Context, invite domain.Invite, orderID string) error {
	return p.publish(ctx, TopicInviteIssued, invite.Payload.AccountID, AggregateTypeInvite, InviteIssuedData{
		AccountID: invite.Payload.AccountID,
		ProductID: invite.Payload.ProductID,
		Slug:      invite.Payload.Slug,
		Token:     invite.Token,
		ExpiresAt: invite.ExpiresAt,
		OrderID:   orderID,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published review event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
