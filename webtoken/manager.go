package webtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL bounds how long a return-to token stays redeemable. The
// window only needs to cover one trip through the login form.
const DefaultTTL = 5 * time.Minute

// ErrInvalidToken covers every verification failure: bad signature,
// expired, wrong algorithm, or a destination that is not a relative path.
var ErrInvalidToken = errors.New("webtoken: invalid token")

// Config configures a Manager. Key is required; TTL and Issuer fall back
// to defaults.
type Config struct {
	Key    []byte
	TTL    time.Duration
	Issuer string
}

// Manager mints and verifies HS256 return-to tokens.
type Manager struct {
	config Config
}

type returnToClaims struct {
	Destination string `json:"dst"`
	jwt.RegisteredClaims
}

// NewManager validates the config and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Key) < 32 {
		return nil, errors.New("webtoken: key must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "gatekeeper"
	}
	return &Manager{config: cfg}, nil
}

// Sign mints a token carrying destination. Only relative paths are
// accepted; anything that could be read as an absolute or scheme-relative
// URL is refused here rather than at redeem time.
func (m *Manager) Sign(destination string) (string, error) {
	if !SafeDestination(destination) {
		return "", fmt.Errorf("webtoken: unsafe destination %q", destination)
	}

	now := time.Now()
	claims := returnToClaims{
		Destination: destination,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Key)
}

// Verify checks the token and returns its destination. Every failure mode
// comes back as ErrInvalidToken; callers fall back to a default landing
// path rather than branching on the cause.
func (m *Manager) Verify(tokenStr string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
	)

	claims := &returnToClaims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.Key, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	if !SafeDestination(claims.Destination) {
		return "", ErrInvalidToken
	}
	return claims.Destination, nil
}

// SafeDestination reports whether dst is a plain relative path suitable
// for a redirect target. "//host" and "/\host" forms are rejected along
// with anything carrying a scheme.
func SafeDestination(dst string) bool {
	if dst == "" || !strings.HasPrefix(dst, "/") {
		return false
	}
	if strings.HasPrefix(dst, "//") || strings.HasPrefix(dst, "/\\") {
		return false
	}
	if strings.ContainsAny(dst, "\r\n") {
		return false
	}
	return true
}
