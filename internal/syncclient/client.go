// Package syncclient is a reference client for the tabletop API: typed HTTP
// calls, a fixed-interval sync poller and a pure reducer that turns each
// snapshot into the view a client renders.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tabletop-backend/internal/model"
)

// APIError non-2xx response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tabletop api: %d %s", e.Status, e.Message)
}

// Snapshot body of GET /games/:id/sync
type Snapshot struct {
	Game      *model.Game     `json:"game"`
	Messages  []model.Message `json:"messages"`
	Actions   []model.Action  `json:"actions"`
	Timestamp time.Time       `json:"timestamp"`
	Online    []string        `json:"online"`
}

// Session body of register, login and role responses
type Session struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Client typed calls against one API base URL. Not safe for concurrent
// SetToken calls; concurrent requests are fine.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewClient Client constructor. httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Register creates an account and keeps its token.
func (c *Client) Register(ctx context.Context, username, password, role string) (*Session, error) {
	var sess Session
	body := map[string]string{"username": username, "password": password}
	if role != "" {
		body["role"] = role
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &sess); err != nil {
		return nil, err
	}
	c.token = sess.Token
	return &sess, nil
}

// Login signs in and keeps the token.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var sess Session
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &sess); err != nil {
		return nil, err
	}
	c.token = sess.Token
	return &sess, nil
}

// CreateGame creates a game; the token must carry the dm role.
func (c *Client) CreateGame(ctx context.Context, name string, maxPlayers, gridSize int) (*model.Game, error) {
	var out struct {
		Game *model.Game `json:"game"`
	}
	body := map[string]any{"name": name, "maxPlayers": maxPlayers, "gridSize": gridSize}
	if err := c.do(ctx, http.MethodPost, "/games", body, &out); err != nil {
		return nil, err
	}
	return out.Game, nil
}

// Join takes a seat.
func (c *Client) Join(ctx context.Context, gameID string) (*model.Game, error) {
	var out struct {
		Game *model.Game `json:"game"`
	}
	if err := c.do(ctx, http.MethodPost, "/games/"+gameID+"/join", nil, &out); err != nil {
		return nil, err
	}
	return out.Game, nil
}

// Sync fetches the combined snapshot.
func (c *Client) Sync(ctx context.Context, gameID string) (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(ctx, http.MethodGet, "/games/"+gameID+"/sync", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// UpdateTokens replaces the token list.
func (c *Client) UpdateTokens(ctx context.Context, gameID string, tokens []model.Token) error {
	return c.do(ctx, http.MethodPut, "/games/"+gameID+"/tokens", map[string]any{"tokens": tokens}, nil)
}

// UpdateFog replaces the fog set.
func (c *Client) UpdateFog(ctx context.Context, gameID string, fog []string) error {
	return c.do(ctx, http.MethodPut, "/games/"+gameID+"/fog", map[string]any{"fog": fog}, nil)
}

// PostMessage sends a chat message.
func (c *Client) PostMessage(ctx context.Context, gameID, content string) (*model.Message, error) {
	var out struct {
		Message *model.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/games/"+gameID+"/messages", map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return out.Message, nil
}

// RollDice rolls count dice of diceType.
func (c *Client) RollDice(ctx context.Context, gameID, diceType string, count, modifier int) (*model.DiceRoll, error) {
	var out struct {
		Roll *model.DiceRoll `json:"roll"`
	}
	body := map[string]any{"diceType": diceType, "count": count, "modifier": modifier}
	if err := c.do(ctx, http.MethodPost, "/games/"+gameID+"/dice", body, &out); err != nil {
		return nil, err
	}
	return out.Roll, nil
}
