package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "jwt-test-secret"

	token, err := GenerateToken(secret, "42", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Empty(t, claims.CodeVerifier)
}

func TestStateTokenCarriesCodeVerifier(t *testing.T) {
	secret := "jwt-test-secret"

	token, err := GenerateStateToken(secret, "7", "the-code-verifier")
	require.NoError(t, err)

	claims, err := ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)
	assert.Equal(t, "the-code-verifier", claims.CodeVerifier)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("correct-secret", "42", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken("wrong-secret", token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := GenerateToken("jwt-test-secret", "42", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken("jwt-test-secret", token)
	assert.Error(t, err)
}
