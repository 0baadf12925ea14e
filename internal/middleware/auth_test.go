package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/platformeng/demo-user-service/internal/auth"
	"github.com/platformeng/demo-user-service/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, userID string, expiry time.Duration) string {
	t.Helper()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authedHandler(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = auth.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthValidToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.NewDefault("test"), nil)

	var gotUser string
	h := m.Handler(authedHandler(&gotUser))

	req := httptest.NewRequest(http.MethodGet, "/api/user/all", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42", time.Hour))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUser != "user-42" {
		t.Fatalf("expected user-42 in context, got %q", gotUser)
	}
}

func TestAuthMissingHeader(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.NewDefault("test"), nil)

	var gotUser string
	h := m.Handler(authedHandler(&gotUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/all", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthWrongSecret(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.NewDefault("test"), nil)

	var gotUser string
	h := m.Handler(authedHandler(&gotUser))

	req := httptest.NewRequest(http.MethodGet, "/api/user/all", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-42", time.Hour))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthExpiredToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.NewDefault("test"), nil)

	var gotUser string
	h := m.Handler(authedHandler(&gotUser))

	req := httptest.NewRequest(http.MethodGet, "/api/user/all", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42", -time.Hour))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthSkipPaths(t *testing.T) {
	m := NewAuthMiddleware(testSecret, logger.NewDefault("test"), []string{"/health"})

	var gotUser string
	h := m.Handler(authedHandler(&gotUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthNoSecretPassthrough(t *testing.T) {
	m := NewAuthMiddleware("", logger.NewDefault("test"), nil)

	var gotToken string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.FromContext(r.Context()); ok {
			gotToken = id.Token
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user/all", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotToken != "opaque-token" {
		t.Fatalf("expected raw token carried through, got %q", gotToken)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.NewDefault("test"))

	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/user/all", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected first two requests allowed, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third request limited, got %v", codes)
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.NewDefault("test"))

	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/user/all", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected distinct keys to be independent, got %d for %s", rec.Code, addr)
		}
	}
}
