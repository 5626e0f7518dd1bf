package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/innerscore/internal/domain/model"
)

// client wraps http.Client with a per-request timeout.
type client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

func newClient(base string, timeout time.Duration) *client {
	return &client{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %w %d: %s", path, ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *client) collection(ctx context.Context) ([]model.Repository, error) {
	var records []model.Repository
	if err := c.getJSON(ctx, "/repos", &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *client) leaderboard(ctx context.Context, n int) ([]Entry, error) {
	var entries []Entry
	if err := c.getJSON(ctx, "/leaderboard?limit="+strconv.Itoa(n), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
