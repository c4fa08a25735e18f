package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/ports"
)

// Client reads library data from the Spotify Web API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// compile-time interface assertion
var _ ports.TrackRepository = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the attempt count and base backoff for retried requests.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseBackoff = backoff
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a new Spotify client. httpClient is expected to
// authorize requests itself.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credentials identifies the application for the client-credentials flow.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// NewClientWithCredentials constructs a client whose requests carry an
// app token obtained, and refreshed, through the client-credentials flow.
func NewClientWithCredentials(ctx context.Context, creds Credentials, baseURL string, opts ...Option) *Client {
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
	}
	return NewClient(cfg.Client(ctx), baseURL, opts...)
}

// getJSON issues a GET with retries and decodes a 200 response into out.
// A 404 maps to domain.ErrNotFound.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("spotify adapter: %w", err)
	}
	resp, err := c.get(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("spotify adapter: %s: %w", req.URL.Path, domain.ErrNotFound)
	default:
		return &StatusError{Code: resp.StatusCode, Path: req.URL.Path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify adapter: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// StatusError reports a non-success response that was not retried.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify adapter: %s: status %d", e.Path, e.Code)
}
