package webcrawlerapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Defaults applied by New when the corresponding Config field is unset.
const (
	DefaultBaseURL   = "https://api.webcrawlerapi.com"
	DefaultPollDelay = 5000 * time.Millisecond
	DefaultMaxPolls  = 100
	DefaultUserAgent = "webcrawlerapi-go/" + Version
)

// Version is reported in the default User-Agent.
const Version = "1.0.0"

// Config holds the client settings.
type Config struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	// PollDelay is the wait between polls when the service gives no hint.
	PollDelay time.Duration
	MaxPolls  int
}

// Client submits jobs and waits for them. It keeps no per-job state and is
// safe for concurrent use.
type Client struct {
	cfg       Config
	transport Transport
	sleeper   Sleeper
	observer  Observer
	logger    *zap.Logger
}

// New validates cfg and builds a Client. observer and logger may be nil.
func New(
	cfg Config,
	transport Transport,
	sleeper Sleeper,
	observer Observer,
	logger *zap.Logger,
) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if sleeper == nil {
		return nil, errors.New("sleeper is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = DefaultPollDelay
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:       cfg,
		transport: transport,
		sleeper:   sleeper,
		observer:  observer,
		logger:    logger,
	}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

func (c *Client) maxPolls(override int) int {
	if override > 0 {
		return override
	}
	return c.cfg.MaxPolls
}

// send performs one call and returns the 2xx body. Everything else becomes
// an *Error.
func (c *Client) send(ctx context.Context, method, path, body string) (string, error) {
	resp, err := c.transport.Send(ctx, Request{
		Method: method,
		URL:    c.cfg.BaseURL + path,
		Body:   body,
		Header: c.headers(),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", interruptedError(ctxErr)
		}
		return "", networkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", remoteError(resp.StatusCode, resp.Body)
	}
	return resp.Body, nil
}

func (c *Client) headers() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+c.cfg.APIKey)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("User-Agent", c.cfg.UserAgent)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	return h
}

func missingIDError(what string) *Error {
	return &Error{
		Code:    CodeInvalidResponse,
		Message: fmt.Sprintf("Failed to get %s ID from response", what),
	}
}
