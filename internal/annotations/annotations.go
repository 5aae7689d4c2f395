// Package annotations talks to the mission's Grafana instance to record
// and query timeline annotations (flares, maneuvers, data gaps) on the
// operations dashboards.
package annotations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Environment variables the client reads.
const (
	EnvBaseURL = "SWXKIT_GRAFANA_URL"
	EnvToken   = "SWXKIT_GRAFANA_TOKEN"
)

// Annotation is one Grafana annotation.
type Annotation struct {
	ID           int64    `json:"id"`
	DashboardUID string   `json:"dashboardUID"`
	PanelID      int64    `json:"panelId"`
	Time         int64    `json:"time"`
	TimeEnd      int64    `json:"timeEnd"`
	Title        string   `json:"title"`
	Text         string   `json:"text"`
	Tags         []string `json:"tags"`
}

// Client is a Grafana annotation client.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient builds a client from the environment.
func NewClient(log zerolog.Logger) (*Client, error) {
	base := os.Getenv(EnvBaseURL)
	if base == "" {
		return nil, fmt.Errorf("annotations: %s is not set", EnvBaseURL)
	}
	return NewClientWith(base, os.Getenv(EnvToken), nil, log), nil
}

// NewClientWith builds a client against an explicit endpoint. A nil
// httpc uses a default client with a 30 second timeout.
func NewClientWith(baseURL, token string, httpc *http.Client, log zerolog.Logger) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   httpc,
		log:     log.With().Str("component", "annotations").Logger(),
	}
}

// Query returns the annotations between start and end. A dashboard name
// scopes the query to that dashboard; tags narrow it further. A zero end
// time leaves the range open.
func (c *Client) Query(ctx context.Context, start, end time.Time, dashboardName string, tags []string) ([]Annotation, error) {
	params := url.Values{}
	params.Set("from", strconv.FormatInt(start.UnixMilli(), 10))
	if !end.IsZero() {
		params.Set("to", strconv.FormatInt(end.UnixMilli(), 10))
	}
	for _, tag := range tags {
		params.Add("tags", tag)
	}
	if dashboardName != "" {
		uid, err := c.dashboardUID(ctx, dashboardName)
		if err != nil {
			return nil, err
		}
		params.Set("dashboardUID", uid)
	}

	var out []Annotation
	if err := c.do(ctx, http.MethodGet, "/api/annotations?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts an annotation on the named dashboard. An empty panel name
// attaches the annotation to the dashboard as a whole. The created
// annotation's ID is returned.
func (c *Client) Create(ctx context.Context, start, end time.Time, text string, tags []string,
	dashboardName, panelName string) (int64, error) {

	uid, err := c.dashboardUID(ctx, dashboardName)
	if err != nil {
		return 0, err
	}

	body := map[string]any{
		"dashboardUID": uid,
		"time":         start.UnixMilli(),
		"text":         text,
		"tags":         tags,
	}
	if !end.IsZero() {
		body["timeEnd"] = end.UnixMilli()
	}
	if panelName != "" {
		panelID, err := c.panelID(ctx, uid, panelName)
		if err != nil {
			return 0, err
		}
		body["panelId"] = panelID
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/annotations", body, &resp); err != nil {
		return 0, err
	}

	c.log.Info().Int64("id", resp.ID).Str("dashboard", dashboardName).Msg("created annotation")
	return resp.ID, nil
}

// Remove deletes an annotation by ID.
func (c *Client) Remove(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/annotations/%d", id), nil, nil)
}

// dashboardUID resolves a dashboard name through the search API.
func (c *Client) dashboardUID(ctx context.Context, name string) (string, error) {
	params := url.Values{}
	params.Set("query", name)
	params.Set("type", "dash-db")

	var hits []struct {
		UID   string `json:"uid"`
		Title string `json:"title"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &hits); err != nil {
		return "", err
	}
	for _, hit := range hits {
		if strings.EqualFold(hit.Title, name) {
			return hit.UID, nil
		}
	}
	return "", fmt.Errorf("annotations: dashboard %q not found", name)
}

// panelID resolves a panel title within a dashboard.
func (c *Client) panelID(ctx context.Context, uid, panelName string) (int64, error) {
	var resp struct {
		Dashboard struct {
			Panels []struct {
				ID    int64  `json:"id"`
				Title string `json:"title"`
			} `json:"panels"`
		} `json:"dashboard"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/dashboards/uid/"+uid, nil, &resp); err != nil {
		return 0, err
	}
	for _, panel := range resp.Dashboard.Panels {
		if strings.EqualFold(panel.Title, panelName) {
			return panel.ID, nil
		}
	}
	return 0, fmt.Errorf("annotations: panel %q not found on dashboard %s", panelName, uid)
}

// do performs one JSON request against the Grafana API.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("annotations: encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("annotations: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("annotations: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("annotations: %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("annotations: decode response: %w", err)
	}
	return nil
}
