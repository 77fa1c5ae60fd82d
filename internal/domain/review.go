package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the moderation state of a review.
type Status string

// Review statuses.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Action is an administrator's moderation decision.
type Action string

// Moderation actions.
const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction validates a moderation action received from a client.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionApprove, ActionReject:
		return a, nil
	}
	return "", fmt.Errorf("unknown moderation action %q", s)
}

// Target returns the status a review ends up in after the action. Any status
// may be re-moderated; nothing leads back to pending.
func (a Action) Target() Status {
	if a == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a product review left by an invited account.
type Review struct {
	ID           int64     `json:"id,string"`
	ProductID    string    `json:"product_id"`
	AccountID    string    `json:"account_id"`
	AuthorName   string    `json:"author_name,omitempty"`
	Rating       int       `json:"rating"`
	Body         string    `json:"review_body"`
	Status       Status    `json:"status"`
	HelpfulCount int       `json:"helpful_count"`
	ReportCount  int       `json:"report_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Moderate applies action and refreshes UpdatedAt. It returns the status the
// review had before.
func (r *Review) Moderate(action Action, now time.Time) Status {
	prev := r.Status
	r.Status = action.Target()
	r.UpdatedAt = now
	return prev
}

// Report is one account's complaint about a review.
type Report struct {
	ReviewID  int64     `json:"review_id,string"`
	AccountID string    `json:"account_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateRating checks the 1-5 star range.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
	}
	return nil
}

// MergeBody folds an optional title into the review body.
func MergeBody(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return body
	}
	return title + "\n\n" + body
}
