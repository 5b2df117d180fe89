package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/givelane/internal/auth/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T, clk clock.Clock) domain.Service {
	t.Helper()
	return New(Params{
		Cfg:   config.Config{AuthJWTSecret: testSecret, AuthJWTIssuer: "givelane"},
		Log:   zap.NewNop(),
		Clock: clk,
	})
}

func TestIssueAndAuthenticate(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	svc := newTestService(t, clk)

	token, expiresAt, err := svc.Issue(context.Background(), domain.IssueRequest{Subject: "1234", Role: domain.RoleDonor, TTL: time.Minute})
	require.NoError(t, err)
	assert.WithinDuration(t, clk.Now().Add(time.Minute), expiresAt, time.Second)

	principal, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "1234", principal.Subject)
	assert.Equal(t, domain.RoleDonor, principal.Role)
	assert.False(t, principal.IsAdmin())
	assert.NotEmpty(t, principal.TokenID)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	svc := newTestService(t, clk)

	token, _, err := svc.Issue(context.Background(), domain.IssueRequest{Subject: "1234", Role: domain.RoleAdmin, TTL: time.Minute})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestAuthenticateRejectsForeignTokens(t *testing.T) {
	svc := newTestService(t, clock.SystemClock{})

	now := time.Now()
	claims := domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "givelane",
			Subject:   "1234",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: domain.RoleAdmin,
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	claims.Issuer = "someone-else"
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": forged,
		"wrong issuer": wrongIssuer,
		"alg none":     unsigned,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), token)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}

	_, err = svc.Authenticate(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrMissingToken)
}

func TestDisabledWithoutSecret(t *testing.T) {
	svc := New(Params{Cfg: config.Config{}, Log: zap.NewNop()})

	_, _, err := svc.Issue(context.Background(), domain.IssueRequest{Subject: "1", Role: domain.RoleDonor})
	assert.ErrorIs(t, err, domain.ErrAuthNotConfigured)
	_, err = svc.Authenticate(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrAuthNotConfigured)
}
