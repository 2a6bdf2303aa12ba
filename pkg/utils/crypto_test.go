package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := "test-secret-key"

	cases := []string{
		"simple-token",
		"",
		"token:with:colons",
		"ユニコード token 🗝",
	}

	for _, plaintext := range cases {
		encrypted, err := Encrypt([]byte(plaintext), secret)
		require.NoError(t, err)

		decrypted, err := Decrypt(encrypted, secret)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	secret := "test-secret-key"

	first, err := Encrypt([]byte("same-token"), secret)
	require.NoError(t, err)
	second, err := Encrypt([]byte("same-token"), secret)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	firstIV := strings.SplitN(first, ":", 2)[0]
	secondIV := strings.SplitN(second, ":", 2)[0]
	assert.NotEqual(t, firstIV, secondIV)
}

func TestDecryptMissingDelimiter(t *testing.T) {
	_, err := Decrypt("deadbeefdeadbeef", "test-secret-key")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestDecryptWrongSecret(t *testing.T) {
	encrypted, err := Encrypt([]byte("some-token"), "correct-secret")
	require.NoError(t, err)

	decrypted, err := Decrypt(encrypted, "wrong-secret")
	if err == nil {
		// CBC with a wrong key almost always breaks the padding, but if
		// it happens to survive, the plaintext must still not match.
		assert.NotEqual(t, "some-token", decrypted)
	}
}

func TestDecryptInvalidHex(t *testing.T) {
	_, err := Decrypt("nothex:alsonothex", "test-secret-key")
	assert.Error(t, err)
}
