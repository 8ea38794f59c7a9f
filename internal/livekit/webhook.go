package livekit

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// WebhookEvent is the subset of the LiveKit webhook payload this service
// reads. Everything else passes through untouched.
type WebhookEvent struct {
	Event string `json:"event"`
	Room  struct {
		Name string `json:"name"`
	} `json:"room"`
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
}

type webhookClaims struct {
	SHA256 string `json:"sha256"`
	jwt.RegisteredClaims
}

// VerifyWebhook checks the Authorization JWT against the shared secret and
// the body hash it carries, then decodes the event. The caller treats the
// outcome as informational only.
func VerifyWebhook(apiKey, apiSecret, authHeader string, body []byte) (*WebhookEvent, error) {
	if authHeader == "" {
		return nil, errors.New("livekit: missing authorization header")
	}

	var claims webhookClaims
	tok, err := jwt.ParseWithClaims(authHeader, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(apiSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("livekit: webhook token: %w", err)
	}
	if !tok.Valid || claims.Issuer != apiKey {
		return nil, errors.New("livekit: webhook token issuer mismatch")
	}

	sum := sha256.Sum256(body)
	if claims.SHA256 != base64.StdEncoding.EncodeToString(sum[:]) {
		return nil, errors.New("livekit: webhook body hash mismatch")
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("livekit: webhook body: %w", err)
	}
	return &ev, nil
}
