// Package dashclient calls the dashboard REST API and polls it on fixed
// intervals, the way the dashboard's query hooks do.
package dashclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quantum-dashboard/internal/app"
	"quantum-dashboard/internal/model"
)

// APIError is a non-zero business code returned by the server.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (status %d): %s", e.Code, e.Status, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type List[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

type JobQuery struct {
	Status  model.JobStatus
	Backend string
	Limit   int
	Offset  int
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Token() string {
	return c.token
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

func (c *Client) JobStats(ctx context.Context) (*app.JobStats, error) {
	var stats app.JobStats
	if err := c.do(ctx, http.MethodGet, "/api/analytics/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) JobTrends(ctx context.Context, days int) ([]app.TrendPoint, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var points []app.TrendPoint
	if err := c.do(ctx, http.MethodGet, "/api/analytics/trends", q, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (c *Client) Jobs(ctx context.Context, query JobQuery) (*List[model.Job], error) {
	q := url.Values{}
	if query.Status != "" {
		q.Set("status", string(query.Status))
	}
	if query.Backend != "" {
		q.Set("backend", query.Backend)
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		q.Set("offset", strconv.Itoa(query.Offset))
	}
	var list List[model.Job]
	if err := c.do(ctx, http.MethodGet, "/api/jobs", q, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) Backends(ctx context.Context) ([]model.Backend, error) {
	var backends []model.Backend
	if err := c.do(ctx, http.MethodGet, "/api/backends", nil, nil, &backends); err != nil {
		return nil, err
	}
	return backends, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode >= 300 || env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse %s response failed: %w", path, err)
	}
	return nil
}
