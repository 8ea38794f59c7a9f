package livekit

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testKey    = "apikey"
	testSecret = "apisecret-apisecret-apisecret-32"
)

func TestBuildAccessToken_ScopedToIdentityAndRoom(t *testing.T) {
	tok, err := BuildAccessToken(testKey, testSecret, "client@test.com", "client", "room-a", time.Hour)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	identity, room, err := ParseAccessToken(tok, testKey, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if identity != "client@test.com" {
		t.Fatalf("identity = %q", identity)
	}
	if room != "room-a" {
		t.Fatalf("room = %q", room)
	}
}

func TestBuildAccessToken_NotValidAcrossSecrets(t *testing.T) {
	tok, err := BuildAccessToken(testKey, testSecret, "x@test.com", "x", "room-b", time.Hour)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, _, err := ParseAccessToken(tok, testKey, "some-other-secret-entirely-32ch"); err == nil {
		t.Fatalf("token verified under wrong secret")
	}
}

func TestBuildAccessToken_RequiresIdentityAndRoom(t *testing.T) {
	if _, err := BuildAccessToken(testKey, testSecret, "", "n", "room", time.Hour); err == nil {
		t.Fatalf("empty identity accepted")
	}
	if _, err := BuildAccessToken(testKey, testSecret, "id", "n", "", time.Hour); err == nil {
		t.Fatalf("empty room accepted")
	}
}

func signWebhookHeader(t *testing.T, body []byte, key, secret string) string {
	t.Helper()
	sum := sha256.Sum256(body)
	claims := jwt.MapClaims{
		"iss":    key,
		"exp":    time.Now().Add(time.Minute).Unix(),
		"sha256": base64.StdEncoding.EncodeToString(sum[:]),
	}
	header, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign webhook header: %v", err)
	}
	return header
}

func TestVerifyWebhook_RoundTrip(t *testing.T) {
	body := []byte(`{"event":"room_finished","room":{"name":"room-c"},"id":"EV1"}`)
	header := signWebhookHeader(t, body, testKey, testSecret)

	ev, err := VerifyWebhook(testKey, testSecret, header, body)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.Event != "room_finished" || ev.Room.Name != "room-c" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestVerifyWebhook_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"event":"room_finished","room":{"name":"room-d"}}`)
	header := signWebhookHeader(t, body, testKey, testSecret)

	tampered := []byte(`{"event":"room_finished","room":{"name":"room-evil"}}`)
	if _, err := VerifyWebhook(testKey, testSecret, header, tampered); err == nil {
		t.Fatalf("tampered body verified")
	}
}

func TestVerifyWebhook_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"event":"room_started","room":{"name":"room-e"}}`)
	header := signWebhookHeader(t, body, testKey, "not-the-real-secret-not-the-real")

	if _, err := VerifyWebhook(testKey, testSecret, header, body); err == nil {
		t.Fatalf("header signed with wrong secret verified")
	}
}
