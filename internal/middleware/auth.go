package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/platformeng/demo-user-service/internal/auth"
	errs "github.com/platformeng/demo-user-service/internal/errors"
	"github.com/platformeng/demo-user-service/pkg/logger"
)

// Claims represents the JWT claims accepted by the service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware attaches a caller identity to each request. When a signing
// secret is configured, Bearer tokens are verified as HS256 JWTs. Without a
// secret the middleware degrades to a passthrough: the raw token, if any, is
// carried on the context unverified.
type AuthMiddleware struct {
	secret    []byte
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(secret string, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &AuthMiddleware{
		secret:    []byte(secret),
		logger:    log,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)

		if len(m.secret) == 0 {
			ctx := auth.WithIdentity(r.Context(), auth.Identity{Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if token == "" {
			m.respondUnauthorized(w, r, "Missing Authorization header")
			return
		}

		claims, err := m.validateToken(token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token validation failed")
			m.respondUnauthorized(w, r, "Invalid token")
			return
		}

		ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: claims.UserID, Token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *AuthMiddleware) respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	serviceErr := errs.Unauthorized(message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   serviceErr.Message,
	})

	m.logger.WithContext(r.Context()).
		WithField("path", r.URL.Path).
		WithField("method", r.Method).
		Warn("authentication failed")
}
