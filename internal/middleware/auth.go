package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/garage/internal/auth"
	"github.com/ukydev/garage/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	OperatorContextKey contextKey = "operator"
)

// anonymous is put in the context when authentication is disabled.
var anonymous = models.Claims{Username: "anonymous", Role: models.RoleOwner}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
}

// NewAuthMiddleware creates a new authentication middleware. A nil service
// disables authentication: every request acts as an anonymous owner.
func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Enabled reports whether tokens are checked.
func (m *AuthMiddleware) Enabled() bool {
	return m.authService != nil
}

// Authenticate validates JWT tokens and adds operator claims to the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			claims := anonymous
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), OperatorContextKey, &claims)))
			return
		}

		// Extract token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		token, err := auth.ExtractTokenFromHeader(authHeader)
		if err != nil {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		// Validate token
		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission middleware checks if the operator's role grants the action
func (m *AuthMiddleware) RequirePermission(requiredAction string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetOperatorFromContext(r.Context())
			if !ok {
				http.Error(w, "Operator context not found", http.StatusUnauthorized)
				return
			}

			if !claims.Role.HasPermission(requiredAction) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Protect authenticates the request and then checks one permission.
func (m *AuthMiddleware) Protect(action string, h http.HandlerFunc) http.Handler {
	return m.Authenticate(m.RequirePermission(action)(h))
}

// GetOperatorFromContext extracts operator claims from request context
func GetOperatorFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(OperatorContextKey).(*models.Claims)
	return claims, ok
}

// RateLimitMiddleware provides basic rate limiting
type RateLimitMiddleware struct {
	requests  map[string][]int64 // IP -> timestamps
	mu        sync.RWMutex       // Mutex for thread-safe access
	now       func() time.Time
	lastSweep int64
	trusted   []netip.Prefix
}

// NewRateLimitMiddleware creates a new rate limiting middleware. Forwarded
// headers are only read from requests sent by one of trustedProxies.
func NewRateLimitMiddleware(trustedProxies ...netip.Prefix) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		requests: make(map[string][]int64),
		now:      time.Now,
		trusted:  trustedProxies,
	}
}

// RateLimit applies rate limiting based on IP address. A maxRequests of zero
// or less lets every request through.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, windowSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxRequests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := m.clientIP(r)

			// Clean old requests outside the window
			now := m.now().Unix()
			windowStart := now - int64(windowSeconds)

			m.mu.Lock()

			if now-m.lastSweep >= int64(windowSeconds) {
				for ip := range m.requests {
					m.prune(ip, windowStart)
				}
				m.lastSweep = now
			} else {
				m.prune(clientIP, windowStart)
			}

			if len(m.requests[clientIP]) >= maxRequests {
				m.mu.Unlock()
				w.Header().Set("Retry-After", strconv.Itoa(windowSeconds))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			m.requests[clientIP] = append(m.requests[clientIP], now)

			m.mu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}

// prune drops the timestamps of ip older than windowStart, and ip itself once
// none are left. The caller holds m.mu.
func (m *RateLimitMiddleware) prune(ip string, windowStart int64) {
	timestamps, exists := m.requests[ip]
	if !exists {
		return
	}
	var validTimestamps []int64
	for _, ts := range timestamps {
		if ts >= windowStart {
			validTimestamps = append(validTimestamps, ts)
		}
	}
	if len(validTimestamps) == 0 {
		delete(m.requests, ip)
		return
	}
	m.requests[ip] = validTimestamps
}

// clientIP extracts the client IP from the request. X-Forwarded-For and
// X-Real-IP are only believed when the peer is a trusted proxy; the client is
// then the rightmost forwarded address that is not a proxy itself.
func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !m.isTrusted(peer) {
		return peer
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			if hop := strings.TrimSpace(hops[i]); hop != "" && !m.isTrusted(hop) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}

func (m *RateLimitMiddleware) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
