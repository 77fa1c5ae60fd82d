package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
)

// AdminHandler handles HTTP requests for the moderation console.
type AdminHandler struct {
	admin   *service.AdminService
	reviews *service.ReviewService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(admin *service.AdminService, reviews *service.ReviewService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, reviews: reviews, logger: logger}
}

// LoginRequest is the JSON request body for admin login.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// ModerateRequest is the JSON request body for a moderation decision.
type ModerateRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// ModerateResponse is returned after a moderation decision.
type ModerateResponse struct {
	Status domain.Status  `json:"status"`
	Review *domain.Review `json:"review"`
}

// Login handles POST /api/v1/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.admin.Login(r.Context(), req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// ListReviews handles GET /api/v1/admin/reviews
func (h *AdminHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.reviews.ListForModeration(r.Context(), service.ModerationFilter{
		ProductID: q.Get("product_id"),
		Status:    q.Get("status"),
		Page:      pagination.FromRequest(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Moderate handles POST /api/v1/admin/reviews/{id}/moderate
func (h *AdminHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ModerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	review, err := h.reviews.Moderate(r.Context(), id, req.Action, middleware.SubjectFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ModerateResponse{Status: review.Status, Review: review})
}
