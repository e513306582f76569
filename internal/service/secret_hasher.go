package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSecretHasher implements ports.SecretHasher using HMAC-SHA256
// keyed with the application OTP secret. Codes are never stored or
// compared in the clear.
type HMACSecretHasher struct {
	key []byte
}

// NewHMACSecretHasher creates a hasher keyed with secret.
func NewHMACSecretHasher(secret string) *HMACSecretHasher {
	return &HMACSecretHasher{key: []byte(secret)}
}

// Hash computes HMAC-SHA256 of the code.
// Returns lowercase hex-encoded digest.
func (h *HMACSecretHasher) Hash(code string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Compare checks if code hashes to hash.
// Uses constant-time comparison to prevent timing attacks.
func (h *HMACSecretHasher) Compare(code string, hash string) bool {
	expected := h.Hash(code)
	return hmac.Equal([]byte(expected), []byte(hash))
}
