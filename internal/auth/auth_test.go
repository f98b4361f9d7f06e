package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, RoleDriver, testSecret, time.Minute)
	require.NoError(t, err)

	actor, err := NewJWTVerifier(testSecret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), actor.ID)
	assert.Equal(t, RoleDriver, actor.Role)
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateToken(7, RoleCustomer, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = NewJWTVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestWrongSecret(t *testing.T) {
	token, err := GenerateToken(7, RoleAdmin, testSecret, time.Minute)
	require.NoError(t, err)

	_, err = NewJWTVerifier("other-secret").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGarbageToken(t *testing.T) {
	_, err := NewJWTVerifier(testSecret).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
