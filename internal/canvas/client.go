package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxPages caps how many pagination links the client will follow for a
// single list call. Canvas is trusted not to loop its Link headers, but a
// misbehaving proxy shouldn't be able to spin us forever.
const DefaultMaxPages = 200

// DefaultPerPage is the page size requested from Canvas list endpoints.
const DefaultPerPage = 100

// Client is a Canvas LMS REST API client. It owns the base URL, the access
// token, and the pagination policy; it performs no caching and no retries.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	maxPages int
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMaxPages sets the pagination-follow ceiling.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// NewClient creates a Canvas client for the given instance base URL
// (e.g. "https://school.instructure.com") and access token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		maxPages: DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Params holds query parameters for a Canvas request. Scalar values are
// serialized as key=value; slice values as repeated key[]=value entries,
// which is the array convention Canvas expects.
type Params map[string]any

func (p Params) encode() string {
	if len(p) == 0 {
		return ""
	}
	values := url.Values{}
	for key, raw := range p {
		switch v := raw.(type) {
		case string:
			values.Set(key, v)
		case int:
			values.Set(key, strconv.Itoa(v))
		case int64:
			values.Set(key, strconv.FormatInt(v, 10))
		case bool:
			values.Set(key, strconv.FormatBool(v))
		case []string:
			for _, item := range v {
				values.Add(key+"[]", item)
			}
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}
	return values.Encode()
}

// buildURL joins the base URL, an API path, and encoded params.
func (c *Client) buildURL(path string, params Params) string {
	u := c.baseURL + path
	if q := params.encode(); q != "" {
		u += "?" + q
	}
	return u
}

// get issues a single authenticated GET and decodes the JSON body into out.
// It returns the "next" pagination URL from the Link header, or empty string
// when the response is the last page.
func (c *Client) get(ctx context.Context, rawURL string, out any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Network and timeout failures propagate as-is; no retry here.
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyStatus(resp.StatusCode, string(body), rawURL)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return "", fmt.Errorf("decode response from %s: %w", rawURL, err)
		}
	}

	return ParseNextLink(resp.Header.Get("Link")), nil
}

// getObject fetches a single JSON object (no pagination).
func (c *Client) getObject(ctx context.Context, path string, params Params, out any) error {
	_, err := c.get(ctx, c.buildURL(path, params), out)
	return err
}

// fetchAll retrieves the complete result set for a paginated list endpoint,
// following rel="next" links until exhausted. An empty result set is a valid,
// non-error outcome. Exceeding the page ceiling returns ErrTooManyPages.
func fetchAll[T any](ctx context.Context, c *Client, path string, params Params) ([]T, error) {
	if params == nil {
		params = Params{}
	}
	if _, ok := params["per_page"]; !ok {
		params["per_page"] = DefaultPerPage
	}

	var all []T
	next := c.buildURL(path, params)

	for page := 0; next != ""; page++ {
		if page >= c.maxPages {
			return nil, fmt.Errorf("%w: followed %d pages from %s", ErrTooManyPages, page, path)
		}

		var items []T
		followUp, err := c.get(ctx, next, &items)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		next = followUp
	}

	return all, nil
}
