package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/service/audit"
	pkgauth "github.com/timelogic/wfm-api/pkg/auth"
	apperrors "github.com/timelogic/wfm-api/pkg/errors"
	"github.com/timelogic/wfm-api/pkg/security"
)

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	f.users[user.ID] = user
	return nil
}

type fakeAuditRepo struct{}

func (fakeAuditRepo) Create(_ context.Context, _ *model.AuditLog) error { return nil }

func newTestService(t *testing.T) (*Service, *fakeUserRepo, *model.User) {
	t.Helper()

	hasher := security.NewBcryptHasher(4)
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)

	user := &model.User{
		Base:         model.Base{ID: uuid.New()},
		Email:        "jo@example.com",
		Username:     "jo",
		PasswordHash: hash,
		Role:         model.RoleEmployee,
		Status:       model.UserStatusActive,
	}
	repo := &fakeUserRepo{users: map[uuid.UUID]*model.User{user.ID: user}}

	jwtSvc := pkgauth.NewJWTService(pkgauth.Config{
		Secret:             "test-secret",
		RefreshSecret:      "test-refresh-secret",
		ExpiryHours:        1,
		RefreshExpiryHours: 24,
	})

	svc := NewService(repo, jwtSvc, hasher, audit.NewService(fakeAuditRepo{}))
	return svc, repo, user
}

func TestLoginSuccess(t *testing.T) {
	svc, repo, user := newTestService(t)

	tokens, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "jo@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)

	stored := repo.users[user.ID]
	assert.Zero(t, stored.LoginAttempts)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, repo, user := newTestService(t)

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "jo@example.com",
		Password: "wrong-password",
	})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)
	assert.Equal(t, 1, repo.users[user.ID].LoginAttempts)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-pass",
	})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)
}

func TestLoginLockout(t *testing.T) {
	svc, repo, user := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, &model.LoginRequest{Email: user.Email, Password: "wrong-password"})
		require.Error(t, err)
	}

	// even the right password is refused while locked
	_, err := svc.Login(ctx, &model.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)

	// once the window passes the lockout clears
	repo.users[user.ID].LastLoginAttempt = time.Now().Add(-16 * time.Minute)
	tokens, err := svc.Login(ctx, &model.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Zero(t, repo.users[user.ID].LoginAttempts)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo, user := newTestService(t)
	repo.users[user.ID].Status = model.UserStatusInactive

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    user.Email,
		Password: "correct-horse",
	})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestRefresh(t *testing.T) {
	svc, repo, user := newTestService(t)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, &model.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, &model.RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// an access token is not a refresh token
	_, err = svc.Refresh(ctx, &model.RefreshRequest{RefreshToken: tokens.AccessToken})
	require.Error(t, err)

	// a deactivated user cannot refresh
	repo.users[user.ID].Status = model.UserStatusInactive
	_, err = svc.Refresh(ctx, &model.RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.Error(t, err)
}
