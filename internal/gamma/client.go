package gamma

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Client provides access to the Gamma REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	pageSize     int
	requestDelay time.Duration
	maxRetries   int

	// Minimum inter-request spacing
	lastMu      sync.Mutex
	lastRequest time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new Gamma API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		pageSize:     500,
		requestDelay: 500 * time.Millisecond,
		maxRetries:   3,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithPageSize sets the pagination page size (capped at the API's 500 ceiling).
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 && n <= 500 {
			c.pageSize = n
		}
	}
}

// WithRequestDelay sets the minimum spacing between requests.
func WithRequestDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestDelay = d
	}
}

// WithRetries sets the maximum retry count for retryable failures.
func WithRetries(max int) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
