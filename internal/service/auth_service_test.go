package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/app-platform/internal/config"
	"github.com/spec-kit/app-platform/internal/domain"
	apperrors "github.com/spec-kit/app-platform/pkg/util/errorutil"
)

func newAuthService(users *memoryUserRepo) *AuthService {
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}, users)
}

func TestRegisterAndLogin(t *testing.T) {
	users := newMemoryUserRepo()
	svc := newAuthService(users)
	ctx := context.Background()

	user, token, _, err := svc.Register(ctx, "Ada", "Lovelace", "  Ada@Example.com ", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEmpty(t, token)

	loggedIn, token, _, err := svc.Login(ctx, "ada@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, token)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newMemoryUserRepo()
	svc := newAuthService(users)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "Ada", "", "ada@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, _, _, err = svc.Register(ctx, "Imposter", "", "ada@example.com", "hunter2hunter2")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestRegisterShortPassword(t *testing.T) {
	svc := newAuthService(newMemoryUserRepo())

	_, _, _, err := svc.Register(context.Background(), "Ada", "", "ada@example.com", "short")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestLoginRejections(t *testing.T) {
	users := newMemoryUserRepo()
	svc := newAuthService(users)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "Ada", "", "ada@example.com", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, _, _, err := svc.Login(ctx, "ada@example.com", "wrong-password")
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "UNAUTHORIZED", domainErr.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2")
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "UNAUTHORIZED", domainErr.Code)
	})
}

func TestLoginAfterAccountDeletion(t *testing.T) {
	users := newMemoryUserRepo()
	svc := newAuthService(users)
	ctx := context.Background()

	user, _, _, err := svc.Register(ctx, "Ada", "", "ada@example.com", "hunter2hunter2")
	require.NoError(t, err)

	user.Email = domain.DeletedEmail(user.Email)
	user.Deleted = true
	require.NoError(t, users.Update(ctx, user))

	_, _, _, err = svc.Login(ctx, "ada@example.com", "hunter2hunter2")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)

	// the original address is free for a fresh registration
	_, _, _, err = svc.Register(ctx, "Ada", "", "ada@example.com", "hunter2hunter2")
	assert.NoError(t, err)
}
