// Package client is a small Go client for the proms-mcp HTTP surface:
// the MCP endpoint, the identity probe and the admin routes.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const defaultTimeout = 30 * time.Second

// Client talks to a proms-mcp server. Construct it with New; the zero
// value is not usable.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client

	// rpcID numbers JSON-RPC requests issued by this client.
	rpcID atomic.Int64
}

// Option customizes a Client during construction.
type Option func(*Client)

// WithAuthToken sends the given bearer token with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient replaces the underlying HTTP client, for timeouts or
// custom transports.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL must not be empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in base URL", parsed.Scheme)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type urlBuilder struct {
	base  string
	path  string
	query url.Values
}

func (c *Client) url() *urlBuilder {
	return &urlBuilder{base: c.baseURL, query: url.Values{}}
}

func (b *urlBuilder) setPath(path string) *urlBuilder {
	b.path = path
	return b
}

// setPathParam substitutes a {name} placeholder in the path.
func (b *urlBuilder) setPathParam(name, value string) *urlBuilder {
	b.path = strings.ReplaceAll(b.path, "{"+name+"}", url.PathEscape(value))
	return b
}

func (b *urlBuilder) addQueryParam(name string, value any) *urlBuilder {
	b.query.Add(name, fmt.Sprint(value))
	return b
}

func (b *urlBuilder) build() string {
	built := b.base + b.path
	if len(b.query) > 0 {
		built += "?" + b.query.Encode()
	}
	return built
}
