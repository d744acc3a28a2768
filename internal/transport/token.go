package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// peerTokenTTL bounds how long a signed envelope may sit in flight.
const peerTokenTTL = time.Minute

var ErrBadPeerToken = errors.New("invalid peer token")

// SignPeerToken issues an HS256 token naming the sending replica (sub) and the envelope id (jti).
func SignPeerToken(secret []byte, from, envelopeID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   from,
		ID:        envelopeID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(peerTokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyPeerToken checks signature and expiry and returns the sender identity.
func VerifyPeerToken(secret []byte, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPeerToken, err)
	}
	if !t.Valid || claims.Subject == "" {
		return "", ErrBadPeerToken
	}
	return claims.Subject, nil
}
