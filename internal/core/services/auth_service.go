package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"streampay/internal/core/domain"
	"streampay/pkg/logger"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoSigner     = errors.New("no signer in context")
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// AuthService issues and checks signer tokens. A token binds a request to the
// ledger identity that signs its transitions.
type AuthService interface {
	GenerateToken(signer domain.Address) (string, error)
	GenerateRefreshToken(signer domain.Address) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
	SignerFromContext(ctx context.Context) (domain.Address, error)
}

type Claims struct {
	Signer    domain.Address `json:"signer"`
	TokenType TokenType      `json:"token_type"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
}

func NewAuthService(jwtSecret string, accessTokenTTL, refreshTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:       []byte(jwtSecret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		now:             time.Now,
	}
}

func (s *authService) sign(signer domain.Address, typ TokenType, ttl time.Duration) (string, error) {
	if signer.IsZero() {
		return "", domain.ErrInvalidAddress
	}
	now := s.now()
	claims := &Claims{
		Signer:    signer,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   signer.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) GenerateToken(signer domain.Address) (string, error) {
	return s.sign(signer, TokenAccess, s.accessTokenTTL)
}

func (s *authService) GenerateRefreshToken(signer domain.Address) (string, error) {
	return s.sign(signer, TokenRefresh, s.refreshTokenTTL)
}

func (s *authService) parse(tokenString string, want TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Signer.IsZero() || claims.TokenType != want {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, TokenAccess)
}

func (s *authService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, TokenRefresh)
}

func (s *authService) SignerFromContext(ctx context.Context) (domain.Address, error) {
	raw := logger.SignerFromContext(ctx)
	if raw == "" {
		return domain.Address{}, ErrNoSigner
	}
	signer, err := domain.ParseAddress(raw)
	if err != nil {
		return domain.Address{}, ErrNoSigner
	}
	return signer, nil
}
