package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/shared"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", "freshcart-console", time.Hour)
	created := time.Date(2023, 7, 14, 8, 30, 0, 0, time.UTC)
	actor := access.Actor{ID: "21", Name: "Ayu", Email: "ayu@freshcart.test", Phone: "+62811", Role: access.RoleShopOwner, CreatedAt: created}

	token, expiresAt, err := issuer.Issue(actor, "sess-21")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, shared.SessionClaims{UserID: "21", SessionID: "sess-21"}, claims)
}

func TestTokenRequiresSession(t *testing.T) {
	issuer := NewTokenIssuer("secret", "freshcart-console", time.Hour)
	_, _, err := issuer.Issue(access.Actor{ID: "1", Role: access.RoleAdmin}, "")
	require.Error(t, err)

	claims := AccessClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "freshcart-console",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsTampering(t *testing.T) {
	issuer := NewTokenIssuer("secret", "freshcart-console", time.Hour)
	token, _, err := issuer.Issue(access.Actor{ID: "1", Role: access.RoleAdmin}, "sess-1")
	require.NoError(t, err)

	other := NewTokenIssuer("other", "freshcart-console", time.Hour)
	_, err = other.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewTokenIssuer("secret", "someone-else", time.Hour)
	_, err = wrongIssuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpires(t *testing.T) {
	issuer := NewTokenIssuer("secret", "", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := issuer.Issue(access.Actor{ID: "1", Role: access.RoleAdmin}, "sess-1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	issuer := NewTokenIssuer("secret", "", time.Hour)
	claims := jwt.MapClaims{"sub": "1", "sid": "sess-1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
