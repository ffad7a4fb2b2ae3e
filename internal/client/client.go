// Package client implements the consumer side of manifest synchronization:
// resolving the latest revision, conditionally downloading content, and
// atomically replacing the local replica.
//
// All state on the consumer is two files: the manifest itself and a JSON
// sidecar next to it recording the digest and sequence last applied. The
// sidecar drives the unchanged short-circuit and the per-consumer
// monotonic-read floor.
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

	"github.com/manifd/manifd"
)

const (
	authorHeader     = "X-Manifd-Author"
	defaultUserAgent = "manifd-client"
)

// Client talks to a manifest service.
type Client struct {
	baseURL   string
	httpc     *http.Client
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom
// transports, proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid endpoint %q: %w", baseURL, manifd.ErrInvalidInput)
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpc:     &http.Client{Timeout: 30 * time.Second},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Latest resolves the current canonical revision.
func (c *Client) Latest(ctx context.Context) (manifd.Revision, error) {
	var rev manifd.Revision
	if err := c.getJSON(ctx, "/manifest/latest", &rev); err != nil {
		return manifd.Revision{}, err
	}
	if _, err := manifd.ParseDigest(rev.Digest.String()); err != nil {
		return manifd.Revision{}, fmt.Errorf("malformed latest response: %w", manifd.ErrTransient)
	}
	return rev, nil
}

// Fetch downloads the content blob for digest and verifies it.
func (c *Client) Fetch(ctx context.Context, digest manifd.Digest) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/manifest/"+digest.String(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read content: %v: %w", err, manifd.ErrTransient)
	}
	if !digest.Matches(data) {
		return nil, fmt.Errorf("fetched %s, got %s: %w", digest, manifd.NewDigest(data), manifd.ErrCorruptDownload)
	}
	return data, nil
}

// Publish posts new manifest content and returns the created revision.
func (c *Client) Publish(ctx context.Context, content []byte, author string) (manifd.Revision, error) {
	resp, err := c.do(ctx, http.MethodPost, "/manifest", bytes.NewReader(content), author)
	if err != nil {
		return manifd.Revision{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return manifd.Revision{}, c.responseError(resp)
	}

	var rev manifd.Revision
	if err := json.NewDecoder(resp.Body).Decode(&rev); err != nil {
		return manifd.Revision{}, fmt.Errorf("decode publish response: %v: %w", err, manifd.ErrTransient)
	}
	return rev, nil
}

// Log lists revision history starting at from.
func (c *Client) Log(ctx context.Context, from uint64) ([]manifd.Revision, error) {
	path := "/manifest/log"
	if from > 0 {
		path += fmt.Sprintf("?from=%d", from)
	}
	var revs []manifd.Revision
	if err := c.getJSON(ctx, path, &revs); err != nil {
		return nil, err
	}
	return revs, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", path, err, manifd.ErrTransient)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, author string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if author != "" {
		req.Header.Set(authorHeader, author)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %v: %w", method, path, ctxErr, manifd.ErrTransient)
		}
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, manifd.ErrTransient)
	}
	return resp, nil
}

// responseError rebuilds a taxonomy error from the JSON error envelope.
// 5xx responses without a usable envelope are transient.
func (c *Client) responseError(resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	msg := body.Message
	if msg == "" {
		msg = fmt.Sprintf("http %d", resp.StatusCode)
	}

	switch body.Kind {
	case "invalid_input":
		return fmt.Errorf("%s: %w", msg, manifd.ErrInvalidInput)
	case "not_found":
		return fmt.Errorf("%s: %w", msg, manifd.ErrNotFound)
	case "conflict":
		return fmt.Errorf("%s: %w", msg, manifd.ErrConflict)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s: %w", msg, manifd.ErrTransient)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", msg, manifd.ErrNotFound)
	}
	return errors.New(msg)
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
