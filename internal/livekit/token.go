package livekit

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VideoGrant mirrors the grant block LiveKit expects inside its access
// tokens. Only the join capability is issued here: one identity, one room.
type VideoGrant struct {
	RoomJoin   bool   `json:"roomJoin,omitempty"`
	RoomCreate bool   `json:"roomCreate,omitempty"`
	RoomAdmin  bool   `json:"roomAdmin,omitempty"`
	Room       string `json:"room,omitempty"`
}

type accessClaims struct {
	Name  string     `json:"name,omitempty"`
	Video VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

// BuildAccessToken signs a join token scoped to exactly (identity, room).
// Stateless; safe for concurrent use.
func BuildAccessToken(apiKey, apiSecret, identity, name, room string, ttl time.Duration) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", errors.New("livekit: api key and secret required")
	}
	if identity == "" || room == "" {
		return "", errors.New("livekit: identity and room required")
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}

	now := time.Now()
	claims := accessClaims{
		Name:  name,
		Video: VideoGrant{RoomJoin: true, Room: room},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(apiSecret))
}

func buildGrantToken(apiKey, apiSecret string, grant VideoGrant) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", errors.New("livekit: api key and secret required")
	}
	now := time.Now()
	claims := accessClaims{
		Video: grant,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    apiKey,
			Subject:   apiKey,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(apiSecret))
}

// ParseAccessToken verifies a token produced by BuildAccessToken and
// returns the identity and room it grants. Used by tests and by nothing
// on the serving path; the media server does its own verification.
func ParseAccessToken(tokenStr, apiKey, apiSecret string) (identity, room string, err error) {
	var claims accessClaims
	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(apiSecret), nil
	})
	if err != nil {
		return "", "", err
	}
	if !tok.Valid || claims.Issuer != apiKey {
		return "", "", errors.New("livekit: invalid token")
	}
	return claims.Subject, claims.Video.Room, nil
}
