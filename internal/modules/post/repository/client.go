package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/samber/oops"
)

const (
	downloadAttempts = 3
	maxAPIBody       = 10 << 20
	maxDownloadBody  = 60 << 20
)

// Client talks to a Danbooru compatible JSON API
type Client struct {
	baseURL    string
	username   string
	apiKey     string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBackOff replaces the retry policy used by Download
func WithBackOff(f func() backoff.BackOff) Option {
	return func(cl *Client) { cl.newBackOff = f }
}

// NewClient creates a new Danbooru client. Credentials are optional.
func NewClient(baseURL, username, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the newest posts matching tags, newest first
func (c *Client) Search(ctx context.Context, tags string, limit int) ([]*domain.Post, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if tags = strings.TrimSpace(tags); tags != "" {
		query.Set("tags", tags)
	}

	body, status, err := c.request(ctx, "/posts.json?"+query.Encode())
	if err != nil {
		return nil, oops.With("tags", tags, "limit", limit).Wrap(err)
	}
	if status != http.StatusOK {
		return nil, oops.With("tags", tags, "status", status).Errorf("unexpected status searching posts")
	}

	return domain.DecodePosts(body)
}

// Get fetches a single post. Restricted and unknown posts decode to errors.ErrRestrictedPost.
func (c *Client) Get(ctx context.Context, id int64) (*domain.Post, error) {
	body, status, err := c.request(ctx, fmt.Sprintf("/posts/%d.json", id))
	if err != nil {
		return nil, oops.With("post_id", id).Wrap(err)
	}
	if status != http.StatusOK && status != http.StatusNotFound && status != http.StatusForbidden {
		return nil, oops.With("post_id", id, "status", status).Errorf("unexpected status fetching post")
	}

	return domain.DecodePost(body)
}

// Download fetches a media file, retrying transient failures up to three attempts
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return oops.With("status", resp.StatusCode).Errorf("server error downloading file")
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(oops.With("status", resp.StatusCode).Errorf("unexpected status downloading file"))
		}

		data, err = io.ReadAll(io.LimitReader(resp.Body, maxDownloadBody))
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), downloadAttempts-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, oops.With("url", rawURL, "attempts", downloadAttempts).Wrap(err)
	}
	return data, nil
}

func (c *Client) request(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
