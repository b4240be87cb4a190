package webapp

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/mondo/internal/mondo"
)

// ErrInvalidSession is returned for cookies that fail signature, algorithm
// or expiry checks.
var ErrInvalidSession = errors.New("invalid session")

// Claims carry the token record inside the signed cookie.
type Claims struct {
	jwt.RegisteredClaims
	Token mondo.Token `json:"token"`
}

// EncodeSession signs t into an HS256 JWT valid for ttl from now.
func EncodeSession(t mondo.Token, secretKey []byte, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Token: t,
	})
	return token.SignedString(secretKey)
}

// DecodeSession verifies a cookie value and returns the token record in it.
func DecodeSession(value string, secretKey []byte) (mondo.Token, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return mondo.Token{}, errors.Join(ErrInvalidSession, err)
	}
	if !token.Valid {
		return mondo.Token{}, ErrInvalidSession
	}
	return claims.Token, nil
}
