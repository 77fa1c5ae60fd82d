package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const reviewColumns = `id, product_id, account_id, author_name, rating, body, status,
	helpful_count, report_count, created_at, updated_at`

const (
	insertReview = `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	selectReview = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	lockReview = selectReview + ` FOR UPDATE`

	selectRatingCounts = `
		SELECT rating, count(*)
		FROM reviews
		WHERE product_id = $1 AND status = 'approved'
		GROUP BY rating`

	updateStatus = `UPDATE reviews SET status = $2, updated_at = $3 WHERE id = $1`

	deleteHelpfulVote = `DELETE FROM review_helpful_votes WHERE review_id = $1 AND account_id = $2`

	insertHelpfulVote = `
		INSERT INTO review_helpful_votes (review_id, account_id, created_at)
		VALUES ($1, $2, $3)`

	syncHelpfulCount = `
		UPDATE reviews
		SET helpful_count = (SELECT count(*) FROM review_helpful_votes WHERE review_id = $1),
		    updated_at = $2
		WHERE id = $1
		RETURNING helpful_count`

	insertReport = `
		INSERT INTO review_reports (review_id, account_id, reason, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (review_id, account_id) DO NOTHING`

	incrementReportCount = `
		UPDATE reviews
		SET report_count = report_count + 1, updated_at = $2
		WHERE id = $1
		RETURNING report_count`
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
// Read-modify-write operations lock the review row for the duration of their
// transaction.
type ReviewRepository struct {
	pool database.DBTX
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	ctx, end := database.TraceQuery(ctx, "review.create", insertReview)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, insertReview,
		review.ID,
		review.ProductID,
		review.AccountID,
		review.AuthorName,
		review.Rating,
		review.Body,
		review.Status,
		review.HelpfulCount,
		review.ReportCount,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.AlreadyExists("review", "account_id", review.AccountID)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by id.
func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (review *domain.Review, err error) {
	ctx, end := database.TraceQuery(ctx, "review.get", selectReview)
	defer func() { end(err) }()

	return getReview(ctx, r.pool, selectReview, id)
}

// List returns reviews matching the filter, newest first.
func (r *ReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) (reviews []domain.Review, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.ProductID != "" {
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", argIndex))
		args = append(args, filter.ProductID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM reviews
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		reviewColumns, whereClause, argIndex, argIndex+1,
	)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())

	ctx, end := database.TraceQuery(ctx, "review.list", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.AccountID,
			&rv.AuthorName,
			&rv.Rating,
			&rv.Body,
			&rv.Status,
			&rv.HelpfulCount,
			&rv.ReportCount,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviews, total, nil
}

// RatingCounts returns the approved review count per star rating.
func (r *ReviewRepository) RatingCounts(ctx context.Context, productID string) (counts map[int]int, err error) {
	ctx, end := database.TraceQuery(ctx, "review.rating_counts", selectRatingCounts)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, selectRatingCounts, productID)
	if err != nil {
		return nil, fmt.Errorf("query rating counts: %w", err)
	}
	defer rows.Close()

	counts = make(map[int]int, domain.MaxRating)
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return nil, fmt.Errorf("scan rating count: %w", err)
		}
		counts[rating] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating counts: %w", err)
	}
	return counts, nil
}

// Moderate sets the review status under a row lock.
func (r *ReviewRepository) Moderate(ctx context.Context, id int64, action domain.Action, now time.Time) (review *domain.Review, prev domain.Status, err error) {
	ctx, end := database.TraceQuery(ctx, "review.moderate", updateStatus)
	defer func() { end(err) }()

	err = database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		rv, err := getReview(ctx, tx, lockReview, id)
		if err != nil {
			return err
		}
		prev = rv.Moderate(action, now)

		if _, err := tx.Exec(ctx, updateStatus, id, rv.Status, rv.UpdatedAt); err != nil {
			return fmt.Errorf("update review status: %w", err)
		}
		review = rv
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return review, prev, nil
}

// ToggleHelpful flips accountID's helpful vote and recounts the voters.
func (r *ReviewRepository) ToggleHelpful(ctx context.Context, id int64, accountID string, now time.Time) (review *domain.Review, added bool, err error) {
	ctx, end := database.TraceQuery(ctx, "review.toggle_helpful", syncHelpfulCount)
	defer func() { end(err) }()

	err = database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		rv, err := getReview(ctx, tx, lockReview, id)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, deleteHelpfulVote, id, accountID)
		if err != nil {
			return fmt.Errorf("delete helpful vote: %w", err)
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, insertHelpfulVote, id, accountID, now); err != nil {
				return fmt.Errorf("insert helpful vote: %w", err)
			}
			added = true
		}

		if err := tx.QueryRow(ctx, syncHelpfulCount, id, now).Scan(&rv.HelpfulCount); err != nil {
			return fmt.Errorf("update helpful count: %w", err)
		}
		rv.UpdatedAt = now
		review = rv
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return review, added, nil
}

// AddReport records a report once per account and bumps the report count.
func (r *ReviewRepository) AddReport(ctx context.Context, report domain.Report) (review *domain.Review, err error) {
	ctx, end := database.TraceQuery(ctx, "review.report", insertReport)
	defer func() { end(err) }()

	err = database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		rv, err := getReview(ctx, tx, lockReview, report.ReviewID)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, insertReport, report.ReviewID, report.AccountID, report.Reason, report.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.AlreadyReported(strconv.FormatInt(report.ReviewID, 10))
		}

		if err := tx.QueryRow(ctx, incrementReportCount, report.ReviewID, report.CreatedAt).Scan(&rv.ReportCount); err != nil {
			return fmt.Errorf("update report count: %w", err)
		}
		rv.UpdatedAt = report.CreatedAt
		review = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// Ping checks the database answers.
func (r *ReviewRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getReview(ctx context.Context, q querier, query string, id int64) (*domain.Review, error) {
	var rv domain.Review
	err := q.QueryRow(ctx, query, id).Scan(
		&rv.ID,
		&rv.ProductID,
		&rv.AccountID,
		&rv.AuthorName,
		&rv.Rating,
		&rv.Body,
		&rv.Status,
		&rv.HelpfulCount,
		&rv.ReportCount,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &rv, nil
}
