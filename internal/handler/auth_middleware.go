package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/suar-net/suar-playground/internal/model"
	"github.com/suar-net/suar-playground/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const adminContextKey = contextKey("admin")

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.Claims, error)
}

type AuthMiddleware struct {
	authService TokenValidator
	logger      *zap.Logger
}

func NewAuthMiddleware(s TokenValidator, l *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: s,
		logger:      l,
	}
}

// middleware untuk memeriksa token JWT
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			respondWithError(w, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := m.authService.ValidateToken(r.Context(), headerParts[1])
		if err != nil {
			m.logger.Debug("rejected admin token", zap.Error(err))
			if errors.Is(err, service.ErrTokenExpired) {
				respondWithError(w, http.StatusUnauthorized, "Token has expired")
			} else {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		// Simpan claims di dalam context untuk digunakan oleh handler selanjutnya.
		ctx := context.WithValue(r.Context(), adminContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminFromContext returns the claims of the authenticated caller.
func AdminFromContext(ctx context.Context) (*model.Claims, bool) {
	claims, ok := ctx.Value(adminContextKey).(*model.Claims)
	return claims, ok
}
