package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/auth"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// adminSubject is the JWT subject of the shared administrator account.
const adminSubject = "admin"

// TokenIssuer creates access tokens.
type TokenIssuer interface {
	Generate(subject, role string) (string, time.Time, error)
}

// LoginResult is returned by a successful admin login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AdminService authenticates administrators.
type AdminService struct {
	passwordHash string
	tokens       TokenIssuer
	logger       *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(passwordHash string, tokens TokenIssuer, logger *slog.Logger) *AdminService {
	return &AdminService{
		passwordHash: passwordHash,
		tokens:       tokens,
		logger:       logger,
	}
}

// Login checks the admin password and returns an access token.
func (s *AdminService) Login(ctx context.Context, password string) (*LoginResult, error) {
	if password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	if err := auth.CheckPassword(s.passwordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.WarnContext(ctx, "admin login failed")
			return nil, apperrors.Unauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("admin login: %w", err)
	}

	token, expiresAt, err := s.tokens.Generate(adminSubject, auth.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("generate admin token: %w", err)
	}

	s.logger.InfoContext(ctx, "admin logged in")
	return &LoginResult{AccessToken: token, ExpiresAt: expiresAt}, nil
}
