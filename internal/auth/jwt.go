// Package auth issues and verifies the bearer tokens of the support backend.
// A token names a storefront customer or a back-office operator; the widget
// uses it to resolve the customer profile, and operator routes require it.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role distinguishes storefront customers from back-office operators.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

// DefaultTokenTTL is used when Sign is given a non-positive ttl.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrNoSecret is returned when the service has no signing key.
	ErrNoSecret = errors.New("jwt secret not configured")
	// ErrInvalidToken wraps every verification failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidRole is returned when signing for an unknown role.
	ErrInvalidRole = errors.New("invalid role")
)

// Claims are the JWT claims carried by support tokens.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// IsOperator reports whether the token belongs to a back-office account.
func (c *Claims) IsOperator() bool { return c.Role == RoleOperator }

// JWTService signs and verifies HS256 tokens.
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates a service keyed by secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a signing key is configured.
func (s *JWTService) Enabled() bool { return s != nil && len(s.secret) > 0 }

// Sign creates a token for subject with the given display data and role.
func (s *JWTService) Sign(subject, name, email string, role Role, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrNoSecret
	}
	if role != RoleCustomer && role != RoleOperator {
		return "", ErrInvalidRole
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := s.now()
	claims := &Claims{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
