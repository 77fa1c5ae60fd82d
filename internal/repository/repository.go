package repository

import (
	"context"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ReviewFilter defines filter criteria for listing reviews. Empty fields
// match everything.
type ReviewFilter struct {
	ProductID string
	Status    domain.Status
	Page      pagination.Params
}

// ReviewRepository defines the persistence operations of the review store.
// Every mutating method is atomic with respect to concurrent callers on the
// same store.
type ReviewRepository interface {
	// Create inserts a new review. A second review by the same account for
	// the same product fails with apperrors.ErrAlreadyExists.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by id or fails with apperrors.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*domain.Review, error)

	// List returns reviews matching filter, newest first, along with the
	// total count before pagination.
	List(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)

	// RatingCounts returns the number of approved reviews per star rating.
	RatingCounts(ctx context.Context, productID string) (map[int]int, error)

	// Moderate applies action to a review and returns the updated review and
	// its previous status. An unknown id leaves the store untouched.
	Moderate(ctx context.Context, id int64, action domain.Action, now time.Time) (*domain.Review, domain.Status, error)

	// ToggleHelpful adds accountID to the review's helpful voters, or removes
	// it when already present, and keeps helpful_count equal to the number
	// of voters. It reports whether the vote was added.
	ToggleHelpful(ctx context.Context, id int64, accountID string, now time.Time) (*domain.Review, bool, error)

	// AddReport records a report. A second report by the same account fails
	// with an ALREADY_REPORTED conflict.
	AddReport(ctx context.Context, report domain.Report) (*domain.Review, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
