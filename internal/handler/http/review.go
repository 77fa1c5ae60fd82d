package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ReviewHandler handles HTTP requests for shopper-facing review endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
	invites *service.InviteService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(reviews *service.ReviewService, invites *service.InviteService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews: reviews,
		invites: invites,
		logger:  logger,
	}
}

// --- Request DTOs ---

// IssueInviteRequest is the JSON request body for requesting a review invite.
type IssueInviteRequest struct {
	ProductID string `json:"product_id" validate:"required,notblank,max=100"`
	Slug      string `json:"slug" validate:"required,notblank,max=200"`
}

// SubmitReviewRequest is the JSON request body for submitting a review.
type SubmitReviewRequest struct {
	Token      string `json:"token" validate:"required"`
	Rating     int    `json:"rating"`
	Title      string `json:"title" validate:"max=200"`
	Body       string `json:"body" validate:"max=5000"`
	AuthorName string `json:"author_name" validate:"max=100"`
}

// ReportRequest is the JSON request body for reporting a review.
type ReportRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

// --- Response types ---

// HelpfulResponse is returned after a helpful vote is toggled.
type HelpfulResponse struct {
	Success      bool `json:"success"`
	HelpfulCount int  `json:"helpful_count"`
}

// ReportResponse is returned after a report is recorded.
type ReportResponse struct {
	Success bool `json:"success"`
}

// --- Handlers ---

// IssueInvite handles POST /api/v1/reviews/invites
func (h *ReviewHandler) IssueInvite(w http.ResponseWriter, r *http.Request) {
	var req IssueInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inv, err := h.invites.Issue(r.Context(), accountID(r), req.ProductID, req.Slug)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: inv})
}

// Submit handles POST /api/v1/products/{productId}/reviews
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	review, err := h.reviews.Submit(r.Context(), &service.SubmitInput{
		Token:      req.Token,
		AccountID:  accountID(r),
		ProductID:  chi.URLParam(r, "productId"),
		AuthorName: req.AuthorName,
		Title:      req.Title,
		Body:       req.Body,
		Rating:     req.Rating,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}

// ListByProduct handles GET /api/v1/products/{productId}/reviews
func (h *ReviewHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	result, err := h.reviews.ListByProduct(r.Context(), chi.URLParam(r, "productId"), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Rating handles GET /api/v1/products/{productId}/rating
func (h *ReviewHandler) Rating(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reviews.Rating(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// MarkHelpful handles POST /api/v1/reviews/{id}/helpful
func (h *ReviewHandler) MarkHelpful(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	review, err := h.reviews.MarkHelpful(r.Context(), id, accountID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, HelpfulResponse{Success: true, HelpfulCount: review.HelpfulCount})
}

// Report handles POST /api/v1/reviews/{id}/report
func (h *ReviewHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ReportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := h.reviews.Report(r.Context(), id, accountID(r), req.Reason); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ReportResponse{Success: true})
}
