// Package auth implements the static credential gate of the lab desk and
// the signed session tokens it hands out.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/caddl-lab-desk/internal/domain"
)

const issuer = "caddl-lab-desk"

const defaultTokenTTL = 12 * time.Hour

// Claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	TechNumber string `json:"tech_number"`
}

// Session is the result of a successful login.
type Session struct {
	Token      string    `json:"token"`
	TechNumber string    `json:"techNumber"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Authenticator checks credentials and issues HS256 session tokens.
type Authenticator struct {
	techNumber string
	password   string
	secret     []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewAuthenticator creates an authenticator from config.
func NewAuthenticator(cfg domain.AuthConfig) (*Authenticator, error) {
	if strings.TrimSpace(cfg.TechNumber) == "" || cfg.Password == "" {
		return nil, errors.New("auth requires a technician number and password")
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, errors.New("auth jwt secret must be at least 16 bytes")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Authenticator{
		techNumber: strings.TrimSpace(cfg.TechNumber),
		password:   cfg.Password,
		secret:     []byte(cfg.JWTSecret),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Login checks the credentials. The technician number is compared without
// regard to case; the password must match exactly.
func (a *Authenticator) Login(techNumber, password string) (*Session, error) {
	techOK := strings.EqualFold(strings.TrimSpace(techNumber), a.techNumber)
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !techOK || !passOK {
		return nil, domain.WrapLabError(domain.ErrAuthentication, "invalid technician number or password", domain.ErrInvalidCredential)
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   a.techNumber,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		TechNumber: a.techNumber,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &Session{Token: token, TechNumber: a.techNumber, ExpiresAt: expires}, nil
}

// Verify validates a session token and returns the technician number.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return "", domain.WrapLabError(domain.ErrAuthentication, "invalid session token", domain.ErrInvalidCredential)
	}
	return claims.TechNumber, nil
}
