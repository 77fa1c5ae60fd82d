package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/invite"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

// DefaultReportThreshold is the report count that triggers an admin alert.
const DefaultReportThreshold = 3

const alertExcerptLen = 280

// InviteVerifier checks invite tokens.
type InviteVerifier interface {
	Verify(token string) (*domain.InvitePayload, error)
}

// RatingCache memoizes rating summaries. Implementations may fail; the
// service then falls back to the store.
type RatingCache interface {
	Get(ctx context.Context, productID string) (*domain.RatingSummary, bool, error)
	Set(ctx context.Context, productID string, summary *domain.RatingSummary) error
	Invalidate(ctx context.Context, productID string) error
}

// ReviewEvents publishes review lifecycle events.
type ReviewEvents interface {
	PublishReviewSubmitted(ctx context.Context, review *domain.Review) error
	PublishReviewModerated(ctx context.Context, review *domain.Review, previous domain.Status, moderator string) error
	PublishReportThresholdReached(ctx context.Context, review *domain.Review, reason string) error
}

// SubmitInput holds the parameters for submitting a review.
type SubmitInput struct {
	Token      string
	AccountID  string
	ProductID  string
	AuthorName string
	Title      string
	Body       string
	Rating     int
}

// ModerationFilter narrows the admin review list.
type ModerationFilter struct {
	ProductID string
	Status    string
	Page      pagination.Params
}

// ReviewDeps groups the collaborators of a ReviewService. Cache may be nil.
type ReviewDeps struct {
	Repo            repository.ReviewRepository
	Verifier        InviteVerifier
	IDs             domain.IDGenerator
	Cache           RatingCache
	Events          ReviewEvents
	Notifier        notify.Sender
	ReportThreshold int
	Clock           func() time.Time
	Logger          *slog.Logger
}

// ReviewService implements the business logic for review submission,
// moderation and aggregation.
type ReviewService struct {
	// mu serializes mutating operations within this process.
	mu sync.Mutex

	repo      repository.ReviewRepository
	verifier  InviteVerifier
	ids       domain.IDGenerator
	cache     RatingCache
	events    ReviewEvents
	notifier  notify.Sender
	threshold int
	now       func() time.Time
	logger    *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(deps ReviewDeps) *ReviewService {
	threshold := deps.ReportThreshold
	if threshold <= 0 {
		threshold = DefaultReportThreshold
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ReviewService{
		repo:      deps.Repo,
		verifier:  deps.Verifier,
		ids:       deps.IDs,
		cache:     deps.Cache,
		events:    deps.Events,
		notifier:  deps.Notifier,
		threshold: threshold,
		now:       clock,
		logger:    deps.Logger,
	}
}

// Submit verifies the caller's invite and stores a pending review.
func (s *ReviewService) Submit(ctx context.Context, input *SubmitInput) (*domain.Review, error) {
	payload, err := s.verifier.Verify(input.Token)
	inviteVerifications.WithLabelValues(verificationResult(err)).Inc()
	if err != nil {
		s.logger.InfoContext(ctx, "invite rejected",
			slog.String("product_id", input.ProductID),
			slog.String("reason", err.Error()),
		)
		return nil, apperrors.InvalidInvite(err)
	}

	if payload.AccountID != input.AccountID || payload.ProductID != input.ProductID {
		return nil, apperrors.Forbidden("invite was issued for another account or product")
	}
	if err := domain.ValidateRating(input.Rating); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	body := domain.MergeBody(input.Title, input.Body)
	if strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.InvalidInput("review body is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	review := &domain.Review{
		ID:         s.ids.NewID(),
		ProductID:  input.ProductID,
		AccountID:  input.AccountID,
		AuthorName: strings.TrimSpace(input.AuthorName),
		Rating:     input.Rating,
		Body:       body,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	reviewsSubmitted.Inc()

	if err := s.events.PublishReviewSubmitted(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review submitted event",
			slog.Int64("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.Int64("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.Int("rating", review.Rating),
	)
	return review, nil
}

// Get returns a single review.
func (s *ReviewService) Get(ctx context.Context, id int64) (*domain.Review, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

// Moderate approves or rejects a review. Already moderated reviews may be
// moderated again.
func (s *ReviewService) Moderate(ctx context.Context, id int64, action, moderator string) (*domain.Review, error) {
	act, err := domain.ParseAction(action)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	review, prev, err := s.repo.Moderate(ctx, id, act, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("moderate review: %w", err)
	}
	reviewsModerated.WithLabelValues(string(act)).Inc()

	s.invalidateRating(ctx, review.ProductID)

	if err := s.events.PublishReviewModerated(ctx, review, prev, moderator); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review moderated event",
			slog.Int64("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review moderated",
		slog.Int64("review_id", review.ID),
		slog.String("previous_status", string(prev)),
		slog.String("status", string(review.Status)),
		slog.String("moderated_by", moderator),
	)
	return review, nil
}

// MarkHelpful toggles accountID's helpful vote on a review.
func (s *ReviewService) MarkHelpful(ctx context.Context, id int64, accountID string) (*domain.Review, error) {
	if accountID == "" {
		return nil, apperrors.InvalidInput("account id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	review, added, err := s.repo.ToggleHelpful(ctx, id, accountID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("toggle helpful vote: %w", err)
	}

	s.logger.DebugContext(ctx, "helpful vote toggled",
		slog.Int64("review_id", id),
		slog.Bool("added", added),
		slog.Int("helpful_count", review.HelpfulCount),
	)
	return review, nil
}

// Report records accountID's complaint about a review. The report that
// brings the count to the threshold alerts administrators; the review stays
// visible until someone moderates it.
func (s *ReviewService) Report(ctx context.Context, id int64, accountID, reason string) (*domain.Review, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.InvalidInput("report reason is required")
	}
	if accountID == "" {
		return nil, apperrors.InvalidInput("account id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	review, err := s.repo.AddReport(ctx, domain.Report{
		ReviewID:  id,
		AccountID: accountID,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("report review: %w", err)
	}
	reviewReports.Inc()

	if review.ReportCount == s.threshold {
		s.alert(ctx, review, reason)
	}
	return review, nil
}

func (s *ReviewService) alert(ctx context.Context, review *domain.Review, reason string) {
	a := notify.Alert{
		ReviewID:    review.ID,
		ProductID:   review.ProductID,
		ReportCount: review.ReportCount,
		LastReason:  reason,
		Excerpt:     notify.Excerpt(review.Body, alertExcerptLen),
	}
	if err := s.notifier.Send(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "failed to notify administrators",
			slog.Int64("review_id", review.ID),
			slog.String("channel", s.notifier.Name()),
			slog.String("error", err.Error()),
		)
	}
	if err := s.events.PublishReportThresholdReached(ctx, review, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish report threshold event",
			slog.Int64("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListByProduct returns the approved reviews of a product, newest first.
func (s *ReviewService) ListByProduct(ctx context.Context, productID string, page pagination.Params) (pagination.Result[domain.Review], error) {
	reviews, total, err := s.repo.List(ctx, repository.ReviewFilter{
		ProductID: productID,
		Status:    domain.StatusApproved,
		Page:      page,
	})
	if err != nil {
		return pagination.Result[domain.Review]{}, fmt.Errorf("list reviews: %w", err)
	}
	return pagination.NewResult(reviews, total, page), nil
}

// ListForModeration returns reviews of any status for administrators.
func (s *ReviewService) ListForModeration(ctx context.Context, filter ModerationFilter) (pagination.Result[domain.Review], error) {
	status := domain.Status(filter.Status)
	if status != "" && !status.Valid() {
		return pagination.Result[domain.Review]{}, apperrors.InvalidInput(fmt.Sprintf("unknown status %q", filter.Status))
	}

	reviews, total, err := s.repo.List(ctx, repository.ReviewFilter{
		ProductID: filter.ProductID,
		Status:    status,
		Page:      filter.Page,
	})
	if err != nil {
		return pagination.Result[domain.Review]{}, fmt.Errorf("list reviews for moderation: %w", err)
	}
	return pagination.NewResult(reviews, total, filter.Page), nil
}

// Rating returns the aggregate of a product's approved reviews.
func (s *ReviewService) Rating(ctx context.Context, productID string) (*domain.RatingSummary, error) {
	if cached, ok := s.cachedRating(ctx, productID); ok {
		return cached, nil
	}

	// Load and Set hold mu so a summary computed before a moderation cannot
	// be written back after that moderation invalidated the cache.
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cachedRating(ctx, productID); ok {
		return cached, nil
	}

	counts, err := s.repo.RatingCounts(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load rating counts: %w", err)
	}
	summary := domain.SummarizeCounts(counts)

	if s.cache != nil {
		if err := s.cache.Set(ctx, productID, &summary); err != nil {
			s.logger.WarnContext(ctx, "rating cache write failed",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		}
	}
	return &summary, nil
}

func (s *ReviewService) cachedRating(ctx context.Context, productID string) (*domain.RatingSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, ok, err := s.cache.Get(ctx, productID)
	if err != nil {
		s.logger.WarnContext(ctx, "rating cache read failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
	return cached, ok
}

func (s *ReviewService) invalidateRating(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.logger.WarnContext(ctx, "rating cache invalidation failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, invite.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, invite.ErrTokenExpired):
		return "expired"
	default:
		return "malformed"
	}
}
