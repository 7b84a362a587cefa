package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("alice", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestParseToken_Rejects(t *testing.T) {
	good, err := NewAccessToken("alice", "secret", time.Hour)
	require.NoError(t, err)
	expired, err := NewAccessToken("alice", "secret", -time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(good, "other-secret")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = ParseToken(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = ParseToken("not.a.token", "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)

	_, err = ParseToken(noSubject, "secret")
	assert.ErrorIs(t, err, ErrMissingSubject)

	_, err = ParseToken(unsigned, "secret")
	assert.Error(t, err)

	_, err = NewAccessToken("", "secret", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestOwnerContext(t *testing.T) {
	_, ok := GetOwnerFromContext(context.Background())
	assert.False(t, ok)

	owner, ok := GetOwnerFromContext(WithOwner(context.Background(), "bob"))
	assert.True(t, ok)
	assert.Equal(t, "bob", owner)
}
