package service

import (
	"context"
	"testing"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository/memory"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewAuthService(repos.Users, testSecret, time.Hour, Options{})
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Name:     " Dana Reyes ",
		Email:    "Dana@Example.com",
		Password: "hunter22",
		Role:     domain.RoleClient,
		Timezone: "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", user.Name)
	assert.Equal(t, "dana@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)
	assert.False(t, user.ID.IsZero())

	stored, err := repos.Users.GetByEmail(ctx, "dana@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.Equal(t, "Europe/Berlin", stored.Timezone)

	token, loggedIn, err := svc.Login(ctx, "DANA@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.Empty(t, loggedIn.PasswordHash)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(svc.GetJWTSecret()), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, domain.RoleClient, claims.Role)
	assert.Equal(t, "fittrainer-pro", claims.Issuer)
}

func TestAuthService_RegisterRejects(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewAuthService(repos.Users, testSecret, time.Hour, Options{})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Sam", Email: "sam@example.com", Password: "secret1", Role: domain.RoleCoach})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate email", RegisterInput{Name: "Sam", Email: "SAM@example.com", Password: "secret1", Role: domain.RoleClient}, ErrUserAlreadyExists},
		{"short password", RegisterInput{Name: "Al", Email: "al@example.com", Password: "abc", Role: domain.RoleClient}, ErrValidationFailed},
		{"bad email", RegisterInput{Name: "Al", Email: "not-an-email", Password: "secret1", Role: domain.RoleClient}, ErrValidationFailed},
		{"bad role", RegisterInput{Name: "Al", Email: "al@example.com", Password: "secret1", Role: "admin"}, ErrValidationFailed},
		{"bad timezone", RegisterInput{Name: "Al", Email: "al@example.com", Password: "secret1", Role: domain.RoleClient, Timezone: "Mars/Olympus"}, ErrValidationFailed},
		{"missing name", RegisterInput{Email: "al@example.com", Password: "secret1", Role: domain.RoleClient}, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewAuthService(repos.Users, testSecret, time.Hour, Options{})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Sam", Email: "sam@example.com", Password: "secret1", Role: domain.RoleCoach})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "sam@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, _, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestNewAuthService_EmptySecretPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewAuthService(memory.NewRepositories().Users, "", time.Hour, Options{})
	})
}
