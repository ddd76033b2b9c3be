package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streampay/internal/core/domain"
	"streampay/pkg/logger"
)

func newTestAuth(now time.Time) *authService {
	svc := NewAuthService("test-secret", 15*time.Minute, 24*time.Hour).(*authService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestAuthService_RoundTrip(t *testing.T) {
	svc := newTestAuth(time.Now())

	access, err := svc.GenerateToken(payer)
	require.NoError(t, err)
	refresh, err := svc.GenerateRefreshToken(payer)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, payer, claims.Signer)
	assert.Equal(t, TokenAccess, claims.TokenType)
	assert.Equal(t, payer.String(), claims.Subject)

	claims, err = svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, payer, claims.Signer)
}

func TestAuthService_Rejects(t *testing.T) {
	issued := time.Now()
	svc := newTestAuth(issued)
	access, err := svc.GenerateToken(payer)
	require.NoError(t, err)
	refresh, err := svc.GenerateRefreshToken(payer)
	require.NoError(t, err)
	foreign, err := newTestAuthWithSecret("other").GenerateToken(payer)
	require.NoError(t, err)

	tests := []struct {
		name     string
		validate func(string) (*Claims, error)
		token    string
		want     error
	}{
		{"garbage", svc.ValidateToken, "not-a-token", ErrInvalidToken},
		{"refresh used as access", svc.ValidateToken, refresh, ErrInvalidToken},
		{"access used as refresh", svc.ValidateRefreshToken, access, ErrInvalidToken},
		{"wrong secret", svc.ValidateToken, foreign, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validate(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return issued.Add(time.Hour) }
		_, err := svc.ValidateToken(access)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func newTestAuthWithSecret(secret string) AuthService {
	return NewAuthService(secret, time.Minute, time.Hour)
}

func TestAuthService_ZeroSigner(t *testing.T) {
	svc := newTestAuth(time.Now())
	_, err := svc.GenerateToken(domain.Address{})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestAuthService_SignerFromContext(t *testing.T) {
	svc := newTestAuth(time.Now())

	_, err := svc.SignerFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoSigner)

	ctx := logger.WithSigner(context.Background(), payer.String())
	signer, err := svc.SignerFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, payer, signer)

	ctx = logger.WithSigner(context.Background(), "%%%")
	_, err = svc.SignerFromContext(ctx)
	assert.ErrorIs(t, err, ErrNoSigner)
}
