package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/garage/internal/auth"
	"github.com/ukydev/garage/internal/models"
)

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	service, err := auth.NewService("middleware-secret", time.Hour, nil)
	require.NoError(t, err)
	return service
}

func tokenFor(t *testing.T, service *auth.Service, username string, role models.Role) string {
	t.Helper()
	token, _, err := service.GenerateToken(models.Operator{Username: username, Role: role})
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	authService := newAuthService(t)
	middleware := NewAuthMiddleware(authService)

	t.Run("valid token", func(t *testing.T) {
		token := tokenFor(t, authService, "mel", models.RoleMechanic)

		req := httptest.NewRequest("GET", "/api/vehicles", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			claims, ok := GetOperatorFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "mel", claims.Username)
			assert.Equal(t, models.RoleMechanic, claims.Role)
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing authorization header", ""},
		{"invalid token", "Bearer invalid-token"},
		{"wrong scheme", "Basic bWVsOnB3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/vehicles", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Authenticate(handler).ServeHTTP(w, req)
			assert.False(t, handlerCalled)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	middleware := NewAuthMiddleware(nil)
	assert.False(t, middleware.Enabled())

	req := httptest.NewRequest("DELETE", "/api/vehicles/abc", nil)
	w := httptest.NewRecorder()
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		claims, ok := GetOperatorFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, models.RoleOwner, claims.Role)
	})

	middleware.Protect(models.PermManageVehicles, handler).ServeHTTP(w, req)
	assert.True(t, handlerCalled)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_RequirePermission(t *testing.T) {
	authService := newAuthService(t)
	middleware := NewAuthMiddleware(authService)

	tests := []struct {
		name       string
		role       models.Role
		permission string
		wantCalled bool
		wantCode   int
	}{
		{"owner manages vehicles", models.RoleOwner, models.PermManageVehicles, true, http.StatusOK},
		{"mechanic logs maintenance", models.RoleMechanic, models.PermLogMaintenance, true, http.StatusOK},
		{"mechanic cannot remove vehicles", models.RoleMechanic, models.PermManageVehicles, false, http.StatusForbidden},
		{"viewer views vehicles", models.RoleViewer, models.PermViewVehicles, true, http.StatusOK},
		{"viewer cannot drive", models.RoleViewer, models.PermDriveVehicles, false, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/vehicles", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, authService, "someone", tt.role))
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Protect(tt.permission, handler).ServeHTTP(w, req)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}

	t.Run("no operator in context", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		middleware.RequirePermission(models.PermViewVehicles)(handler).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	middleware := NewRateLimitMiddleware()

	t.Run("rate limit not exceeded", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		rateLimitHandler := middleware.RateLimit(5, 60)(handler)
		rateLimitHandler.ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rate limit exceeded", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/test", nil)
		req.RemoteAddr = "192.168.1.2:12345"
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		rateLimitHandler := middleware.RateLimit(1, 60)(handler)

		// First request should succeed
		rateLimitHandler.ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)

		// Second request should be rate limited
		w = httptest.NewRecorder()
		handlerCalled = false
		rateLimitHandler.ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		// Once the window has passed the client may call again
		middleware.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		w = httptest.NewRecorder()
		rateLimitHandler.ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		limited := middleware.RateLimit(0, 60)(handler)
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			limited.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}

func TestRateLimitMiddleware_DropsIdleClients(t *testing.T) {
	middleware := NewRateLimitMiddleware()
	clock := time.Unix(1_700_000_000, 0)
	middleware.now = func() time.Time { return clock }
	limited := middleware.RateLimit(5, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 1; i <= 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = fmt.Sprintf("10.1.0.%d:4000", i)
		limited.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Len(t, middleware.requests, 3)

	clock = clock.Add(2 * time.Minute)
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.0.9:4000"
	limited.ServeHTTP(httptest.NewRecorder(), req)

	assert.Len(t, middleware.requests, 1, "clients idle for a whole window are forgotten")
	assert.Contains(t, middleware.requests, "10.1.0.9")
}

func TestRateLimitMiddleware_IgnoresSpoofedForwardedFor(t *testing.T) {
	middleware := NewRateLimitMiddleware()
	limited := middleware.RateLimit(1, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, fwd := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set("X-Forwarded-For", fwd)
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, req)
		if i == 0 {
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code, "a new X-Forwarded-For must not reset the limit")
		}
	}
}

func TestClientIP(t *testing.T) {
	proxy := netip.MustParsePrefix("10.0.0.0/8")
	tests := []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote address", nil, "192.0.2.1:5555", nil, "192.0.2.1"},
		{"ipv6 remote address", nil, "[2001:db8::1]:5555", nil, "2001:db8::1"},
		{"forwarded header without trusted proxy", nil, "192.0.2.1:5555", map[string]string{"X-Forwarded-For": "198.51.100.9"}, "192.0.2.1"},
		{"real ip from trusted proxy", []netip.Prefix{proxy}, "10.0.0.1:5555", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"rightmost untrusted hop", []netip.Prefix{proxy}, "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.3, 10.0.0.7"}, "198.51.100.3"},
		{"forwarded wins over real ip", []netip.Prefix{proxy}, "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "198.51.100.3", "X-Real-IP": "198.51.100.2"}, "198.51.100.3"},
		{"only proxies forwarded", []netip.Prefix{proxy}, "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "10.0.0.8"}, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, NewRateLimitMiddleware(tt.trusted...).clientIP(req))
		})
	}
}

func TestGetOperatorFromContext(t *testing.T) {
	claims := &models.Claims{
		Username: "testuser",
		Role:     models.RoleViewer,
	}

	ctx := context.WithValue(context.Background(), OperatorContextKey, claims)

	retrievedClaims, ok := GetOperatorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, claims.Username, retrievedClaims.Username)
	assert.Equal(t, claims.Role, retrievedClaims.Role)

	// Test with no operator in context
	_, ok = GetOperatorFromContext(context.Background())
	assert.False(t, ok)
}
