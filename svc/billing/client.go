package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

// ErrUnexpectedStatus is returned when the read API answers with a non-200
// status.
var ErrUnexpectedStatus = errors.New("billing: unexpected response status")

// Client reads the caller's subscription through the HTTP API. It
// implements subscription.Fetcher.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// Summary returns the access summary as computed by the server.
func (c *Client) Summary(ctx context.Context) (Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/subscription", nil)
	if err != nil {
		return Summary{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Summary{}, errors.Join(ErrUnexpectedStatus, fmt.Errorf("status %d", resp.StatusCode))
	}
	var s Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Summary{}, fmt.Errorf("decode subscription: %w", err)
	}
	return s, nil
}

// Fetch returns the raw record; nil when the user has none yet.
func (c *Client) Fetch(ctx context.Context) (*subscription.Record, error) {
	s, err := c.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return s.Record, nil
}
