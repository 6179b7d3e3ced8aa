package arenaapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mcdev12/sinkhole/go/internal/arena"
)

// Client reads room state over the server's REST surface. Gameplay goes
// over the WebSocket; this is for lobby browsers and spectator tooling.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// ListRooms returns every live room.
func (c *Client) ListRooms() ([]arena.RoomInfo, error) {
	var rooms []arena.RoomInfo
	if err := c.getJSON("/api/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// RoomState returns one room's summary.
func (c *Client) RoomState(code string) (arena.RoomInfo, error) {
	var info arena.RoomInfo
	if err := c.getJSON("/api/rooms/"+arena.NormalizeCode(code)+"/state", &info); err != nil {
		return arena.RoomInfo{}, err
	}
	return info, nil
}

// Leaderboard returns one room's current standings.
func (c *Client) Leaderboard(code string) ([]arena.LeaderboardEntry, error) {
	var board []arena.LeaderboardEntry
	if err := c.getJSON("/api/rooms/"+arena.NormalizeCode(code)+"/leaderboard", &board); err != nil {
		return nil, err
	}
	return board, nil
}

func (c *Client) getJSON(endpoint string, out any) error {
	body, err := c.get(endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(endpoint string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, nil
}
