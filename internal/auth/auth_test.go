package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys_RoundTrip(t *testing.T) {
	k, err := NewKeys("test-secret")
	require.NoError(t, err)

	tkn, err := k.GenerateToken(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{RoleUser},
	})
	require.NoError(t, err)

	c, err := k.ValidateToken(tkn)
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.Subject)
	assert.True(t, c.HasRole(RoleUser))
	assert.False(t, c.HasRole(RoleAdmin))
}

func TestKeys_RejectsForeignAndExpiredTokens(t *testing.T) {
	k, err := NewKeys("test-secret")
	require.NoError(t, err)
	other, err := NewKeys("other-secret")
	require.NoError(t, err)

	foreign, err := other.GenerateToken(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	require.NoError(t, err)
	_, err = k.ValidateToken(foreign)
	assert.Error(t, err)

	expired, err := k.GenerateToken(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	require.NoError(t, err)
	_, err = k.ValidateToken(expired)
	assert.Error(t, err)

	noSubject, err := k.GenerateToken(Claims{})
	require.NoError(t, err)
	_, err = k.ValidateToken(noSubject)
	assert.Error(t, err)
}

func TestNewKeys_EmptySecret(t *testing.T) {
	_, err := NewKeys("")
	assert.Error(t, err)
}
