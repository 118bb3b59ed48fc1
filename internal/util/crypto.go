package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const tokenBytes = 16

// GenerateToken returns a random hex string, used for pending-send tokens.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Fingerprint identifies a credential in logs without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return HashToken(token)[:12]
}
