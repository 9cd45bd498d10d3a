package hn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/anastasiyaperk/Ycrawler/internal/domain"
)

const (
	// DefaultAPIBaseURL is the public Hacker News Firebase API.
	DefaultAPIBaseURL = "https://hacker-news.firebaseio.com/v0"
	// DefaultWebBaseURL serves the human-facing discussion pages, used as
	// the fetch target for stories without an outbound URL.
	DefaultWebBaseURL = "https://news.ycombinator.com"
)

// Failure kinds reported by the client, checked with errors.Is.
var (
	// ErrNotFound means the id no longer resolves to an item. The API
	// signals this with a JSON null body.
	ErrNotFound = errors.New("item not found")
	// ErrTransport covers connection and HTTP-level failures.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse means the payload could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// Client reads the news API. All calls are idempotent reads; a shared rate
// limiter paces them when one is configured.
type Client struct {
	apiBase   string
	webBase   string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient builds a client on top of httpClient. limiter may be nil to
// disable pacing; apiBase and webBase fall back to the public endpoints
// when empty.
func NewClient(httpClient *http.Client, apiBase, webBase string, limiter *rate.Limiter, userAgent string) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	if webBase == "" {
		webBase = DefaultWebBaseURL
	}
	return &Client{
		apiBase:   apiBase,
		webBase:   webBase,
		client:    httpClient,
		limiter:   limiter,
		userAgent: userAgent,
	}
}

// item is the raw API record; stories and comments share the shape.
type item struct {
	ID      int    `json:"id"`
	Deleted bool   `json:"deleted"`
	Type    string `json:"type"`
	Text    string `json:"text"`
	Dead    bool   `json:"dead"`
	Kids    []int  `json:"kids"`
	URL     string `json:"url"`
	Title   string `json:"title"`
}

// TopStories returns the ids of the current top stories, best first,
// truncated to limit when limit is positive.
func (c *Client) TopStories(ctx context.Context, limit int) ([]int, error) {
	var ids []int
	if err := c.getJSON(ctx, c.apiBase+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("top stories: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Story fetches the detail record for a story id.
func (c *Client) Story(ctx context.Context, id int) (*domain.Story, error) {
	it, err := c.item(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Story{
		ID:         it.ID,
		Title:      it.Title,
		URL:        it.URL,
		CommentIDs: it.Kids,
	}, nil
}

// Comment fetches the detail record for a comment id.
func (c *Client) Comment(ctx context.Context, id int) (*domain.Comment, error) {
	it, err := c.item(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Comment{ID: it.ID, BodyHTML: it.Text}, nil
}

// ItemPageURL returns the discussion page for an id, the fetch target for
// text-only stories.
func (c *Client) ItemPageURL(id int) string {
	return fmt.Sprintf("%s/item?id=%d", c.webBase, id)
}

func (c *Client) item(ctx context.Context, id int) (*item, error) {
	var it *item
	if err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.apiBase, id), &it); err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}
	if it == nil || it.Deleted {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return it, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s", ErrTransport, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}
