// Package posts reads posts from the post endpoint.
package posts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// DefaultEndpoint is the post creator the view calls unless configured otherwise.
const DefaultEndpoint = "http://localhost:5000/createPost"

const maxBodySize = 64 * 1024

// Post is a single post as served by the endpoint.
type Post struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

// Fetcher returns a new post.
type Fetcher interface {
	Fetch(ctx context.Context) (Post, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (Post, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (Post, error) {
	return f(ctx)
}

// StatusError reports a non-2xx answer.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Client fetches posts over HTTP. It does not retry.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

// NewClient returns a Client for endpoint. A zero timeout means none.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// Fetch issues one GET against the endpoint and decodes the post.
func (c *Client) Fetch(ctx context.Context) (Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return Post{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Post{}, errors.Wrapf(err, "get %s", c.Endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return Post{}, errors.WithStack(&StatusError{Code: resp.StatusCode})
	}

	var p Post
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&p); err != nil {
		return Post{}, errors.Wrap(err, "decode post")
	}
	return p, nil
}
