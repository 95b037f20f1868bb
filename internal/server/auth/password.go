// Package auth implements the password and token codec: bcrypt password
// hashing, random token generation, expiry computation and signing of the
// session token handed to browsers.
package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is used when a non-positive cost is given.
const DefaultCost = 12

// MaxPasswordBytes is the longest input bcrypt takes into account.
const MaxPasswordBytes = 72

// HashPassword returns a bcrypt digest of plaintext. The digest embeds the
// cost and a random salt, so hashing the same password twice yields
// different strings.
func HashPassword(plaintext string, cost int) (string, error) {
	if plaintext == "" {
		return "", errors.New("password is required")
	}
	if cost <= 0 {
		cost = DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plaintext matches hash. A malformed hash
// is reported as a mismatch, never as an error. Input longer than
// MaxPasswordBytes never matches: bcrypt would compare only its prefix.
func VerifyPassword(plaintext, hash string) bool {
	if plaintext == "" || hash == "" || len(plaintext) > MaxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// ComputeExpiry returns now+ttl.
func ComputeExpiry(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}
