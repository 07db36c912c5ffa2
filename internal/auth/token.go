package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/shared"
)

// ErrInvalidToken is returned for tokens that fail signature, issuer or
// expiry checks.
var ErrInvalidToken = errors.New("auth: invalid token")

// AccessClaims is the JWT body of an access token. The profile claims are
// informational; authorization always reads the session named by sid.
type AccessClaims struct {
	SessionID string `json:"sid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for actor bound to session sessionID.
func (t *TokenIssuer) Issue(actor access.Actor, sessionID string) (string, time.Time, error) {
	if sessionID == "" {
		return "", time.Time{}, errors.New("auth: token requires a session")
	}
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := AccessClaims{
		SessionID: sessionID,
		Name:      actor.Name,
		Email:     actor.Email,
		Phone:     actor.Phone,
		Role:      string(actor.Role),
		CreatedAt: actor.CreatedAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses token and returns the user and session it was issued for.
func (t *TokenIssuer) Verify(token string) (shared.SessionClaims, error) {
	var claims AccessClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return shared.SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return shared.SessionClaims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.SessionID == "" {
		return shared.SessionClaims{}, fmt.Errorf("%w: missing session", ErrInvalidToken)
	}
	return shared.SessionClaims{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}
