package utils

import (
	"crypto/rand"
	"encoding/base64"
)

func GenerateRandomKey(length int) (string, error) {
	// Generate random bytes
	b := make([]byte, length)
	_, err := rand.Read(b)
	// Note that err == nil only if we read len(b) bytes.
	if err != nil {
		return "", err
	}

	// Unpadded so the output is safe as a PKCE code verifier
	return base64.RawURLEncoding.EncodeToString(b), nil
}
