// Package security implements password-at-rest decryption, IP
// allow-listing, and credential sanity checks applied before a connection
// config is handed to an adapter.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

const nonceSize = 12

// EncryptionService decrypts passwords stored as base64(nonce ‖ ciphertext)
// under AES-256-GCM. Standard-library crypto/aes + crypto/cipher are used
// here rather than a third-party AEAD package: the pack carries no Go AEAD
// library beyond what golang.org/x/crypto already re-exports via the
// standard cipher.AEAD interface, and AES-GCM is natively supported by
// crypto/aes — there is nothing an external dependency would add.
type EncryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService builds a service from a base64-encoded 256-bit key.
// A nil/empty key yields a disabled service (IsEnabled() == false), in
// which case ResolvePassword passes values through unchanged.
func NewEncryptionService(encryptionKeyB64 string) (*EncryptionService, error) {
	if encryptionKeyB64 == "" {
		return &EncryptionService{}, nil
	}

	keyBytes, err := base64.StdEncoding.DecodeString(encryptionKeyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (256 bits), got %d", len(keyBytes))
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	return &EncryptionService{aead: aead}, nil
}

func (s *EncryptionService) IsEnabled() bool { return s.aead != nil }

// DecryptPassword decrypts a base64(nonce ‖ ciphertext) password.
// Decryption failure is a fatal configuration error — the caller should
// not retry or fall back.
func (s *EncryptionService) DecryptPassword(encrypted string) (string, error) {
	if s.aead == nil {
		return "", fmt.Errorf("encryption not configured")
	}

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("encrypted data too short")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// ResolvePassword returns the plaintext password for a stored value: when
// encryption is disabled the value passes through unchanged (legacy
// compatibility); otherwise it is decrypted.
func (s *EncryptionService) ResolvePassword(stored string) (string, error) {
	if !s.IsEnabled() {
		return stored, nil
	}
	return s.DecryptPassword(stored)
}
