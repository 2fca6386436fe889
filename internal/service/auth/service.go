package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/repository"
	"github.com/timelogic/wfm-api/internal/service/audit"
	pkgauth "github.com/timelogic/wfm-api/pkg/auth"
	apperrors "github.com/timelogic/wfm-api/pkg/errors"
	"github.com/timelogic/wfm-api/pkg/security"
)

const (
	maxLoginAttempts = 5
	lockoutWindow    = 15 * time.Minute
)

type Service struct {
	userRepo repository.UserRepository
	jwt      pkgauth.JWTService
	hasher   security.PasswordHasher
	auditor  *audit.Service
}

func NewService(userRepo repository.UserRepository, jwt pkgauth.JWTService, hasher security.PasswordHasher, auditor *audit.Service) *Service {
	return &Service{
		userRepo: userRepo,
		jwt:      jwt,
		hasher:   hasher,
		auditor:  auditor,
	}
}

// Login verifies credentials and issues a token pair. Five consecutive
// failures lock the account for fifteen minutes; the lockout resets itself
// once the window passes.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, apperrors.Unauthorized(nil)
	}

	if user.Status == model.UserStatusInactive {
		return nil, apperrors.Forbidden("account is inactive")
	}

	now := time.Now()
	if user.LoginAttempts >= maxLoginAttempts {
		if now.Sub(user.LastLoginAttempt) < lockoutWindow {
			return nil, apperrors.Forbidden("account temporarily locked")
		}
		user.LoginAttempts = 0
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		user.LoginAttempts++
		user.LastLoginAttempt = now
		if updateErr := s.userRepo.Update(ctx, user); updateErr != nil {
			return nil, fmt.Errorf("failed to record login attempt: %w", updateErr)
		}
		return nil, apperrors.Unauthorized(nil)
	}

	user.LoginAttempts = 0
	user.LastLoginAttempt = now
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, user.ID, "login", "user", user.ID, nil)
	return tokens, nil
}

// Refresh validates a refresh token and issues a fresh pair. The user is
// re-read so a deactivation since login takes effect immediately.
func (s *Service) Refresh(ctx context.Context, req *model.RefreshRequest) (*model.TokenResponse, error) {
	claims, err := s.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || user.Status != model.UserStatusActive {
		return nil, apperrors.Unauthorized(nil)
	}

	return s.issueTokens(user)
}

func (s *Service) issueTokens(user *model.User) (*model.TokenResponse, error) {
	access, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwt.AccessExpiry().Seconds()),
	}, nil
}
