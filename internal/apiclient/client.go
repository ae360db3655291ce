// Package apiclient talks to the upstream account API.
//
// A Client is shared by the whole process. Calls made on behalf of a logged-in
// browser go through a Session returned by Bind, which attaches the persisted
// bearer token to every request and turns any 401 into a global session reset.
package apiclient

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

	"github.com/rs/zerolog"

	"accountdesk/portal/internal/config"
)

var (
	// ErrSessionExpired is returned by bound calls after the upstream answered 401.
	// By the time it is returned the session has already been cleared.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnavailable wraps transport failures.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrMalformedResponse is returned when a 2xx body does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

const requestIDHeader = "X-Request-Id"

// Credentials is the view of a browser session the bound client needs.
type Credentials interface {
	// PersistedAccessToken returns the stored token, or "" when there is none.
	PersistedAccessToken(ctx context.Context) (string, error)
	// Unauthorized erases the session after the upstream rejected its token.
	Unauthorized(ctx context.Context) error
}

type Client struct {
	http    *http.Client
	baseURL string
	health  string
	log     zerolog.Logger
}

func New(cfg config.UpstreamConfig, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream url must be http or https, got %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(base.String(), "/"),
		health:  cfg.HealthPath,
		log:     log.With().Str("component", "apiclient").Logger(),
	}, nil
}

// Session is a Client bound to one browser session's credentials.
type Session struct {
	client *Client
	creds  Credentials
}

func (c *Client) Bind(creds Credentials) *Session {
	return &Session{client: c, creds: creds}
}

func (s *Session) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	req, err := s.client.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	token, err := s.creds.PersistedAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		// The reset must survive a request context the browser already abandoned.
		if err := s.creds.Unauthorized(context.WithoutCancel(ctx)); err != nil {
			s.client.log.Error().Err(err).Str("path", path).Msg("session reset after 401 failed")
		}
		return fmt.Errorf("%w: %s %s", ErrSessionExpired, method, path)
	}

	return s.client.decode(resp, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(resp, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := RequestIDFrom(ctx); id != "" {
		req.Header.Set(requestIDHeader, id)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("upstream request failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("upstream request")
	return resp, nil
}

func (c *Client) decode(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Ping reports whether the upstream answers HTTP at all. Any status below 500
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.health, nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
