// Package client talks to a running league server over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	service "github.com/okian/klapi/internal/app"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/internal/domain/standings"
)

const defaultTimeout = 30 * time.Second

// ErrUnexpectedStatus is wrapped by APIError.
var ErrUnexpectedStatus = errors.New("unexpected status")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%v: %d", ErrUnexpectedStatus, e.Status)
	}
	return fmt.Sprintf("%v: %d %s: %s", ErrUnexpectedStatus, e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUnexpectedStatus }

// Client wraps http.Client with the server address and admin credentials.
type Client struct {
	base     string
	http     *http.Client
	user     string
	password string
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets the admin used for admin endpoints.
func WithCredentials(user, password string) Option {
	return func(c *Client) {
		c.user, c.password = user, password
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, admin bool, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Code, apiErr.Message = payload.Code, payload.Message
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", false, nil, nil)
}

// Standings fetches the league table.
func (c *Client) Standings(ctx context.Context) ([]standings.Row, error) {
	var rows []standings.Row
	return rows, c.do(ctx, http.MethodGet, "/api/standings", false, nil, &rows)
}

// Players fetches the roster.
func (c *Client) Players(ctx context.Context) ([]model.Player, error) {
	var players []model.Player
	return players, c.do(ctx, http.MethodGet, "/api/players", false, nil, &players)
}

// Player fetches one player's page.
func (c *Client) Player(ctx context.Context, id string) (service.PlayerPage, error) {
	var page service.PlayerPage
	return page, c.do(ctx, http.MethodGet, "/api/players/"+url.PathEscape(id), false, nil, &page)
}

// Events fetches every event sorted by date.
func (c *Client) Events(ctx context.Context) ([]model.GrandPrix, error) {
	var events []model.GrandPrix
	return events, c.do(ctx, http.MethodGet, "/api/events", false, nil, &events)
}

// AddPlayer registers a player.
func (c *Client) AddPlayer(ctx context.Context, name, bio string) (model.Player, error) {
	var p model.Player
	body := map[string]string{"name": name, "bio": bio}
	return p, c.do(ctx, http.MethodPost, "/api/admin/players", true, body, &p)
}

// AddPlanned plans a GP. when is a date or a relative expression.
func (c *Client) AddPlanned(ctx context.Context, when string) (model.GrandPrix, error) {
	var g model.GrandPrix
	return g, c.do(ctx, http.MethodPost, "/api/admin/events/planned", true, map[string]string{"date": when}, &g)
}

// RecordResults records a played GP on date.
func (c *Client) RecordResults(ctx context.Context, date model.Date, rounds model.Rounds) (model.GrandPrix, error) {
	var g model.GrandPrix
	body := struct {
		Date   model.Date   `json:"date"`
		Rounds model.Rounds `json:"rounds"`
	}{date, rounds}
	return g, c.do(ctx, http.MethodPost, "/api/admin/events/played", true, body, &g)
}
