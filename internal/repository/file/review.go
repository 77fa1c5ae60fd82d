// Package file keeps the review store in a single JSON document on local disk.
// It suits single-instance deployments and development; every operation
// loads the document, mutates it and persists it under one mutex.
package file

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// document is the on-disk layout.
type document struct {
	Reviews []domain.Review `json:"reviews"`
	// Helpful maps a review id to the accounts that marked it helpful.
	Helpful map[string][]string `json:"helpful"`
	Reports []domain.Report     `json:"reports"`
}

// ReviewRepository implements repository.ReviewRepository on a JSON file.
type ReviewRepository struct {
	mu   sync.Mutex
	path string
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository creates a file-backed repository at path. The file is
// created on first write; its directory must be writable.
func NewReviewRepository(path string) *ReviewRepository {
	return &ReviewRepository{path: path}
}

// Create appends a new review.
func (r *ReviewRepository) Create(_ context.Context, review *domain.Review) error {
	return r.update(func(doc *document) error {
		for _, rv := range doc.Reviews {
			if rv.ProductID == review.ProductID && rv.AccountID == review.AccountID {
				return apperrors.AlreadyExists("review", "account_id", review.AccountID)
			}
			if rv.ID == review.ID {
				return apperrors.AlreadyExists("review", "id", strconv.FormatInt(review.ID, 10))
			}
		}
		doc.Reviews = append(doc.Reviews, *review)
		return nil
	})
}

// GetByID retrieves a review by id.
func (r *ReviewRepository) GetByID(_ context.Context, id int64) (*domain.Review, error) {
	var out *domain.Review
	err := r.view(func(doc *document) error {
		i, err := doc.find(id)
		if err != nil {
			return err
		}
		rv := doc.Reviews[i]
		out = &rv
		return nil
	})
	return out, err
}

// List returns matching reviews, newest first.
func (r *ReviewRepository) List(_ context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	var matched []domain.Review
	err := r.view(func(doc *document) error {
		for _, rv := range doc.Reviews {
			if filter.ProductID != "" && rv.ProductID != filter.ProductID {
				continue
			}
			if filter.Status != "" && rv.Status != filter.Status {
				continue
			}
			matched = append(matched, rv)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	slices.SortFunc(matched, func(a, b domain.Review) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	start, end := filter.Page.Window(len(matched))
	page := append([]domain.Review{}, matched[start:end]...)
	return page, len(matched), nil
}

// RatingCounts returns the approved review count per star rating.
func (r *ReviewRepository) RatingCounts(_ context.Context, productID string) (map[int]int, error) {
	counts := make(map[int]int, domain.MaxRating)
	err := r.view(func(doc *document) error {
		for _, rv := range doc.Reviews {
			if rv.ProductID == productID && rv.Status == domain.StatusApproved {
				counts[rv.Rating]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Moderate sets a review's status.
func (r *ReviewRepository) Moderate(_ context.Context, id int64, action domain.Action, now time.Time) (*domain.Review, domain.Status, error) {
	var (
		out  domain.Review
		prev domain.Status
	)
	err := r.update(func(doc *document) error {
		i, err := doc.find(id)
		if err != nil {
			return err
		}
		prev = doc.Reviews[i].Moderate(action, now)
		out = doc.Reviews[i]
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &out, prev, nil
}

// ToggleHelpful flips accountID's helpful vote.
func (r *ReviewRepository) ToggleHelpful(_ context.Context, id int64, accountID string, now time.Time) (*domain.Review, bool, error) {
	var (
		out   domain.Review
		added bool
	)
	err := r.update(func(doc *document) error {
		i, err := doc.find(id)
		if err != nil {
			return err
		}

		key := strconv.FormatInt(id, 10)
		voters := doc.Helpful[key]
		if j := slices.Index(voters, accountID); j >= 0 {
			voters = slices.Delete(voters, j, j+1)
		} else {
			voters = append(voters, accountID)
			added = true
		}
		if len(voters) == 0 {
			delete(doc.Helpful, key)
		} else {
			doc.Helpful[key] = voters
		}

		doc.Reviews[i].HelpfulCount = len(voters)
		doc.Reviews[i].UpdatedAt = now
		out = doc.Reviews[i]
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, added, nil
}

// AddReport records a report once per account.
func (r *ReviewRepository) AddReport(_ context.Context, report domain.Report) (*domain.Review, error) {
	var out domain.Review
	err := r.update(func(doc *document) error {
		i, err := doc.find(report.ReviewID)
		if err != nil {
			return err
		}
		for _, rep := range doc.Reports {
			if rep.ReviewID == report.ReviewID && rep.AccountID == report.AccountID {
				return apperrors.AlreadyReported(strconv.FormatInt(report.ReviewID, 10))
			}
		}

		doc.Reports = append(doc.Reports, report)
		doc.Reviews[i].ReportCount++
		doc.Reviews[i].UpdatedAt = report.CreatedAt
		out = doc.Reviews[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks the document can be read.
func (r *ReviewRepository) Ping(_ context.Context) error {
	return r.view(func(*document) error { return nil })
}

func (r *ReviewRepository) view(fn func(doc *document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

// update runs fn on the current document and persists the result. Nothing
// is written when fn fails.
func (r *ReviewRepository) update(fn func(doc *document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return r.persist(doc)
}

func (r *ReviewRepository) load() (*document, error) {
	doc := &document{Helpful: map[string][]string{}}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, apperrors.StoreIO(fmt.Errorf("read %s: %w", r.path, err))
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, apperrors.StoreIO(fmt.Errorf("decode %s: %w", r.path, err))
	}
	if doc.Helpful == nil {
		doc.Helpful = map[string][]string{}
	}
	return doc, nil
}

// persist writes to a temporary file in the same directory and renames it
// over the store so readers never see a partial document.
func (r *ReviewRepository) persist(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.StoreIO(fmt.Errorf("encode review store: %w", err))
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.StoreIO(fmt.Errorf("create %s: %w", dir, err))
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return apperrors.StoreIO(fmt.Errorf("create temp file: %w", err))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return apperrors.StoreIO(fmt.Errorf("write %s: %w", tmp.Name(), err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return apperrors.StoreIO(fmt.Errorf("sync %s: %w", tmp.Name(), err))
	}
	if err := tmp.Close(); err != nil {
		return apperrors.StoreIO(fmt.Errorf("close %s: %w", tmp.Name(), err))
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return apperrors.StoreIO(fmt.Errorf("rename into %s: %w", r.path, err))
	}
	return nil
}

func (d *document) find(id int64) (int, error) {
	for i := range d.Reviews {
		if d.Reviews[i].ID == id {
			return i, nil
		}
	}
	return -1, apperrors.NotFound("review", strconv.FormatInt(id, 10))
}
