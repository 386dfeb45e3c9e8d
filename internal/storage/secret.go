package storage

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrDecrypt is returned when a sealed value cannot be opened with the
// store's key.
var ErrDecrypt = errors.New("decryption failed")

// GenerateSecretKey generates a new 32-byte secret key.
func GenerateSecretKey() (*[32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &key, nil
}

// SaveSecretKey writes key base64-encoded, readable by the owner only.
func SaveSecretKey(path string, key *[32]byte) error {
	encoded := base64.StdEncoding.EncodeToString(key[:])
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// LoadSecretKey reads a key written by SaveSecretKey.
func LoadSecretKey(path string) (*[32]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid key length: %d (expected 32)", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// GetOrCreateSecretKey loads the key at path, generating it on first use.
// A key file that exists but cannot be decoded is an error; it is never
// replaced.
func GetOrCreateSecretKey(path string) (*[32]byte, error) {
	key, err := LoadSecretKey(path)
	if err == nil {
		return key, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, err
	}

	key, err = GenerateSecretKey()
	if err != nil {
		return nil, err
	}
	if err := SaveSecretKey(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// seal encrypts plaintext with XSalsa20-Poly1305.
// Format: base64([nonce (24 bytes)][ciphertext + tag]).
func seal(plaintext string, key *[32]byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// open reverses seal.
func open(sealed string, key *[32]byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: sealed value too short", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
