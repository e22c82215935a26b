package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/suar-net/suar-playground/internal/config"
	"github.com/suar-net/suar-playground/internal/model"
)

const (
	tokenIssuer = "suar-playground"
	adminScope  = "admin"
)

// AuthService mints and checks the bearer tokens that guard the management
// API. Tokens are HS256-signed with the configured shared secret.
type AuthService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(cfg config.AuthConfig) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{secret: []byte(cfg.SecretKey), ttl: ttl, now: time.Now}
}

// IssueToken signs an admin token for subject. A non-positive ttl uses the
// configured default.
func (s *AuthService) IssueToken(subject string, ttl time.Duration) (*model.DTOTokenResponse, error) {
	if len(s.secret) == 0 {
		return nil, ErrAuthDisabled
	}
	if subject == "" {
		return nil, invalidInput("Subject is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	expirationTime := now.Add(ttl)
	claims := &model.Claims{
		Scope: adminScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &model.DTOTokenResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresAt:   expirationTime.UTC(),
	}, nil
}

func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*model.Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrAuthDisabled
	}

	claims := &model.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !token.Valid || claims.Scope != adminScope {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
