/*
Package release queries the release registry for the latest published release.
*/
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Release is a published release.
type Release struct {
	Tag   string
	Notes string
}

// StatusError is returned for non-200 registry responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("release registry returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to a GitHub compatible releases API.
type Client struct {
	baseURL   string
	userAgent string
	prefix    string
	timeout   time.Duration
	http      *http.Client
}

// NewClient creates a new release registry client
func NewClient(baseURL, userAgent, prefix string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		prefix:    prefix,
		timeout:   timeout,
		http:      &http.Client{Timeout: timeout},
	}
}

// FetchLatest returns the latest release. Failures are logged and reported
// as ok=false.
func (c *Client) FetchLatest(ctx context.Context, owner, repo string) (Release, bool) {
	rel, err := c.Latest(ctx, owner, repo)
	if err != nil {
		log.Warn("fetch latest release failed", "owner", owner, "repo", repo, "error", err)
		return Release{}, false
	}
	return rel, true
}

// Latest fetches the latest release of owner/repo.
func (c *Client) Latest(ctx context.Context, owner, repo string) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	log.Debug("Querying latest release", "url", url)

	resp, err := c.http.Do(req)
	if err != nil {
		return Release{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Release{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		TagName string `json:"tag_name"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Release{}, fmt.Errorf("failed to decode release: %w", err)
	}
	if payload.TagName == "" {
		return Release{}, fmt.Errorf("missing tag_name")
	}

	tag := payload.TagName
	if !strings.HasPrefix(tag, c.prefix) {
		tag = c.prefix + tag
	}

	return Release{Tag: tag, Notes: payload.Body}, nil
}
