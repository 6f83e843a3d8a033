package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// apiKeyBytes is the amount of randomness in a generated API key.
const apiKeyBytes = 32

// GenerateAPIKey returns a random URL-safe API key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// HashPassword hashes a password or API key with bcrypt.
// Inputs longer than 72 bytes are rejected.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash reports whether password matches a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// KeyVerifier checks API keys against a bcrypt hash. The digest of the last
// accepted key is remembered so repeated requests skip bcrypt.
type KeyVerifier struct {
	hash string

	mu       sync.Mutex
	accepted []byte
}

// NewKeyVerifier returns a verifier for hash. An empty hash accepts every key.
func NewKeyVerifier(hash string) *KeyVerifier {
	return &KeyVerifier{hash: hash}
}

// Enabled reports whether a key is required.
func (v *KeyVerifier) Enabled() bool {
	return v.hash != ""
}

// Verify reports whether key is valid.
func (v *KeyVerifier) Verify(key string) bool {
	if !v.Enabled() {
		return true
	}
	if key == "" {
		return false
	}

	digest := sha256.Sum256([]byte(key))

	v.mu.Lock()
	cached := v.accepted
	v.mu.Unlock()
	if cached != nil && subtle.ConstantTimeCompare(cached, digest[:]) == 1 {
		return true
	}

	if !CheckPasswordHash(key, v.hash) {
		return false
	}

	v.mu.Lock()
	v.accepted = digest[:]
	v.mu.Unlock()
	return true
}
