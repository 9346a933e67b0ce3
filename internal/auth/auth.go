package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ukydev/garage/internal/models"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOperatorNotFound   = errors.New("operator not found")
)

// DefaultTokenExpiry is used when no expiry is configured.
const DefaultTokenExpiry = 24 * time.Hour

// Service handles authentication operations for the configured operators.
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	operators map[string]models.Operator
}

// NewService creates a new authentication service
func NewService(secret string, exp time.Duration, operators []models.Operator) (*Service, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if exp <= 0 {
		exp = DefaultTokenExpiry
	}
	s := &Service{
		jwtSecret: []byte(secret),
		tokenExp:  exp,
		now:       time.Now,
		operators: make(map[string]models.Operator, len(operators)),
	}
	for _, op := range operators {
		if !models.IsValidRole(op.Role) {
			return nil, fmt.Errorf("operator %s: unknown role %q", op.Username, op.Role)
		}
		s.operators[op.Username] = op
	}
	return s, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Operator looks up a configured operator by username.
func (s *Service) Operator(username string) (models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operators[username]
	if !ok {
		return models.Operator{}, ErrOperatorNotFound
	}
	return op, nil
}

// Login checks the credentials and issues a token. Unknown users and wrong
// passwords yield the same error.
func (s *Service) Login(req models.LoginRequest) (*models.LoginResponse, error) {
	op, err := s.Operator(strings.TrimSpace(req.Username))
	if err != nil || !CheckPassword(req.Password, op.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.GenerateToken(op)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	s.mu.Lock()
	op.LastLogin = &now
	s.operators[op.Username] = op
	s.mu.Unlock()

	return &models.LoginResponse{Token: token, ExpiresAt: expiresAt, Operator: op}, nil
}

// GenerateToken generates a JWT token for an operator
func (s *Service) GenerateToken(op models.Operator) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenExp)
	claims := jwt.MapClaims{
		"username": op.Username,
		"role":     string(op.Role),
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt.UTC(), nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	username, ok := claims["username"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	roleStr, ok := claims["role"].(string)
	if !ok || !models.IsValidRole(models.Role(roleStr)) {
		return nil, ErrInvalidToken
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		Username: username,
		Role:     models.Role(roleStr),
		Exp:      int64(exp),
	}, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}

// ValidatePassword validates password strength
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	return nil
}

// ValidateUsername validates username format
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters long")
	}
	if len(username) > 50 {
		return errors.New("username must be less than 50 characters")
	}
	return nil
}
