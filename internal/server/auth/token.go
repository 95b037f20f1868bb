package auth

import (
	"errors"

	"github.com/dmitrijs2005/lostfound/internal/common"
)

// MinTokenBytes is the smallest accepted token size: 256 bits of entropy.
const MinTokenBytes = 32

var ErrTokenTooShort = errors.New("token size too small")

// GenerateToken returns byteLength bytes from crypto/rand, hex encoded.
// It backs session ids, CSRF tokens and password-reset tokens.
func GenerateToken(byteLength int) (string, error) {
	if byteLength < MinTokenBytes {
		return "", ErrTokenTooShort
	}
	return common.MakeRandHexString(byteLength)
}
