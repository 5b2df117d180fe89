package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/givelane/internal/auth/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultTokenTTL = time.Hour
	minSecretLength = 32
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock `optional:"true"`
}

// Service issues and verifies HS256 bearer tokens.
type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	secret []byte
	issuer string
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	secret := strings.TrimSpace(p.Cfg.AuthJWTSecret)
	log := p.Log.Named("auth.service")
	if secret == "" {
		log.Warn("AUTH_JWT_SECRET is empty; bearer authentication is disabled")
	} else if len(secret) < minSecretLength {
		log.Warn("AUTH_JWT_SECRET is shorter than recommended", zap.Int("min_length", minSecretLength))
	}
	return &Service{
		log:    log,
		clock:  clk,
		secret: []byte(secret),
		issuer: strings.TrimSpace(p.Cfg.AuthJWTIssuer),
	}
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, domain.ErrAuthNotConfigured
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject is required", domain.ErrInvalidToken)
	}
	role, err := domain.ParseRole(string(req.Role))
	if err != nil {
		return "", time.Time{}, err
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := s.clock.Now()
	expiresAt := now.Add(ttl)
	claims := domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error) {
	if len(s.secret) == 0 {
		return nil, domain.ErrAuthNotConfigured
	}
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, domain.ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims domain.Claims
	token, err := jwt.ParseWithClaims(rawToken, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		s.log.Debug("bearer token rejected", zap.Error(err))
		return nil, domain.ErrInvalidToken
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, domain.ErrInvalidToken
	}
	role, err := domain.ParseRole(string(claims.Role))
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return &domain.Principal{Subject: claims.Subject, Role: role, TokenID: claims.ID}, nil
}
