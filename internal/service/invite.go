package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/slug"
)

// InviteIssuer signs invite tokens.
type InviteIssuer interface {
	Issue(accountID, productID, slug string, ttl time.Duration) (domain.Invite, error)
}

// InviteEvents publishes invite events.
type InviteEvents interface {
	PublishInviteIssued(ctx context.Context, inv domain.Invite, orderID string) error
}

// InviteService issues review invites.
type InviteService struct {
	issuer InviteIssuer
	ttl    time.Duration
	events InviteEvents
	logger *slog.Logger
}

// NewInviteService creates a new invite service.
func NewInviteService(issuer InviteIssuer, ttl time.Duration, events InviteEvents, logger *slog.Logger) *InviteService {
	return &InviteService{
		issuer: issuer,
		ttl:    ttl,
		events: events,
		logger: logger,
	}
}

// Issue signs an invite letting accountID review productID.
func (s *InviteService) Issue(ctx context.Context, accountID, productID, productSlug string) (domain.Invite, error) {
	if accountID == "" {
		return domain.Invite{}, apperrors.InvalidInput("account id is required")
	}
	if productID == "" {
		return domain.Invite{}, apperrors.InvalidInput("product_id is required")
	}
	normalized := slug.Generate(productSlug)
	if normalized == "" {
		return domain.Invite{}, apperrors.InvalidInput("slug must contain at least one letter or digit")
	}

	inv, err := s.issuer.Issue(accountID, productID, normalized, s.ttl)
	if err != nil {
		return domain.Invite{}, fmt.Errorf("issue invite: %w", err)
	}

	s.logger.InfoContext(ctx, "review invite issued",
		slog.String("account_id", accountID),
		slog.String("product_id", productID),
		slog.Time("expires_at", inv.ExpiresAt),
	)
	return inv, nil
}

// IssueForOrder issues an invite for a purchased item and publishes it for
// delivery. A publish failure is returned so the order event is retried.
func (s *InviteService) IssueForOrder(ctx context.Context, orderID, accountID, productID, productSlug string) (domain.Invite, error) {
	inv, err := s.Issue(ctx, accountID, productID, productSlug)
	if err != nil {
		return domain.Invite{}, err
	}
	if err := s.events.PublishInviteIssued(ctx, inv, orderID); err != nil {
		return domain.Invite{}, fmt.Errorf("publish invite for order %s: %w", orderID, err)
	}
	return inv, nil
}
