package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the server-side session id. The session state itself lives
// in the session store; the signature only proves the id was issued here.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// SignSessionToken wraps sessionID in an HS256 token valid for validity.
func SignSessionToken(sessionID string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		SessionID: sessionID,
	})

	return token.SignedString(secretKey)
}

// ParseSessionToken verifies tokenString and returns the session id it carries.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func ParseSessionToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.SessionID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.SessionID, nil
}
