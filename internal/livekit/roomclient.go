package livekit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RoomClient talks to the LiveKit server's room administration RPC.
// Only deletion is needed here; room creation is implicit on first join.
type RoomClient struct {
	Host      string
	APIKey    string
	APISecret string
	Client    *http.Client
}

func NewRoomClient(host, apiKey, apiSecret string) *RoomClient {
	if host == "" {
		host = "http://localhost:7880"
	}
	return &RoomClient{
		Host:      host,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type deleteRoomReq struct {
	Room string `json:"room"`
}

func (c *RoomClient) DeleteRoom(ctx context.Context, room string) error {
	if c.Client == nil {
		return errors.New("livekit: http client is nil")
	}
	if room == "" {
		return errors.New("livekit: room required")
	}

	b, err := json.Marshal(deleteRoomReq{Room: room})
	if err != nil {
		return err
	}

	// Admin token scoped to the room being deleted.
	tok, err := adminToken(c.APIKey, c.APISecret, room)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/twirp/livekit.RoomService/DeleteRoom", c.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("livekit: delete room %s: status=%d body=%s", room, resp.StatusCode, msg)
	}
	return nil
}

func adminToken(apiKey, apiSecret, room string) (string, error) {
	return buildGrantToken(apiKey, apiSecret, VideoGrant{RoomAdmin: true, Room: room})
}
