package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	raw, err := SignToken("secret", "64f1c0ffee0000000000abcd")
	require.NoError(t, err)

	id, err := VerifyToken("secret", raw)
	require.NoError(t, err)
	assert.Equal(t, "64f1c0ffee0000000000abcd", id)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	raw, err := SignToken("secret", "abc")
	require.NoError(t, err)

	_, err = VerifyToken("other-secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := VerifyToken("secret", "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{
		"id":  "abc",
		"exp": time.Now().Add(-time.Minute).Unix(),
		"iat": time.Now().Add(-2 * time.Minute).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = VerifyToken("secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingIDClaim(t *testing.T) {
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = VerifyToken("secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnsignedAlgorithm(t *testing.T) {
	claims := jwt.MapClaims{"id": "abc", "exp": time.Now().Add(time.Hour).Unix()}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifyToken("secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
