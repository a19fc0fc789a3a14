package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// Claims is the payload of a desk bearer token
type Claims struct {
	Role        string `json:"role"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Username returns the token subject
func (c *Claims) Username() string {
	return c.Subject
}

// HasRole reports whether the claim role is one of roles
func (c *Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// LoginResult bundles the token and user returned after a successful login
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *entity.User `json:"user"`
}

// AuthConfig holds token settings
type AuthConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// AuthService issues and verifies role tokens.
// Login is by username only; there is no password.
type AuthService interface {
	Login(ctx context.Context, username string) (*LoginResult, error)
	Authenticate(token string) (*Claims, error)
}

type authServiceImpl struct {
	userRepo port.UserRepository
	cfg      AuthConfig
	now      func() time.Time
	logger   Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo port.UserRepository, cfg AuthConfig, logger Logger) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "voucher-desk"
	}
	return &authServiceImpl{
		userRepo: userRepo,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Login signs a token for an existing user
func (s *authServiceImpl) Login(ctx context.Context, username string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalidf("username is required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, port.ErrNotFound) {
		s.logger.Info("Login rejected for unknown user", "username", username)
		return nil, fmt.Errorf("%w: unknown user %q", ErrUnauthorized, username)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := &Claims{
		Role:        user.Role,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("User logged in", "username", user.Username, "role", user.Role)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate verifies signature, issuer and expiry and returns the claims
func (s *authServiceImpl) Authenticate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !entity.IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, claims.Role)
	}
	return claims, nil
}
