package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ErrMalformedCiphertext is returned when a stored value does not carry
// the iv:ciphertext delimiter. It means the row is corrupted, so callers
// must surface it instead of swallowing it.
var ErrMalformedCiphertext = errors.New("malformed encrypted value: missing iv delimiter")

// Fixed salt for key derivation. Rotating it invalidates every stored token.
const keySalt = "tweeter-automation-token-vault"

func deriveKey(secret string) ([]byte, error) {
	key, err := scrypt.Key([]byte(secret), []byte(keySalt), 1<<14, 8, 1, 32)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return key, nil
}

// Encrypt encrypts plaintext with AES-256-CBC. A fresh random IV is
// generated on every call and prepended to the output as "ivHex:cipherHex".
func Encrypt(plaintext []byte, secret string) (string, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Values without the delimiter fail with
// ErrMalformedCiphertext.
func Decrypt(encryptedData string, secret string) (string, error) {
	parts := strings.SplitN(encryptedData, ":", 2)
	if len(parts) != 2 {
		slog.Info(ErrMalformedCiphertext.Error())
		return "", ErrMalformedCiphertext
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if len(iv) != aes.BlockSize {
		return "", errors.New("invalid iv length")
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("invalid ciphertext length")
	}

	key, err := deriveKey(secret)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded data length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
