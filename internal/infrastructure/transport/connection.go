// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport resolves a Connection from a caller-supplied connection, or a
// (token, domain) pair, and performs the GET/PUT/POST calls the rest of the core
// treats as an external collaborator.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/logger"
)

// Connection is the HTTP collaborator the core never constructs implicitly: every
// call site that needs one receives it explicitly, so there is no ambient/global
// connection state.
type Connection interface {
	// Get fetches target (absolute, or relative to Domain) and decodes it as JSON.
	Get(ctx context.Context, target string) (models.JSON, error)
	// Put writes data as JSON to target, returning the response headers.
	Put(ctx context.Context, target string, data models.JSON, headers map[string]string) (http.Header, error)
	// Post writes data as JSON to target, returning the response headers (callers
	// read Location/Content-Location from these for newly created resources).
	Post(ctx context.Context, target string, data models.JSON, headers map[string]string) (http.Header, error)
	// Domain returns the scheme://host[:port] this connection is bound to, used to
	// resolve relative targets like "/resources" or "<url>/_meta/nonce".
	Domain() string
}

// ResolveOptions mirrors the remote connection resolver's arguments.
type ResolveOptions struct {
	Connection     Connection
	Token          string
	Domain         string
	TimeoutMs      int
	MaxRedirects   int
	AllowedDomains []string // empty means no allowlist restriction
}

// Resolve returns opts.Connection unchanged if supplied; otherwise it builds a fresh,
// non-cached, non-websocket connection from a bearer token against Domain. It fails
// with ErrMissingCredentials if neither is usable.
func Resolve(opts ResolveOptions) (Connection, error) {
	if opts.Connection != nil {
		return opts.Connection, nil
	}

	if opts.Token == "" || opts.Domain == "" {
		return nil, models.ErrMissingCredentials
	}

	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 3
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: opts.Token,
		TokenType:   "Bearer",
	})

	// oauth2.NewClient builds a fresh *http.Client per call: nothing here is cached
	// or reused across Resolve calls, and nothing negotiates a websocket upgrade.
	client := oauth2.NewClient(context.Background(), tokenSource)
	client.Timeout = timeout
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects")
		}
		if !domainAllowed(req.URL.String(), opts.AllowedDomains) {
			return fmt.Errorf("redirect to disallowed domain: %s", req.URL.Host)
		}
		return nil
	}

	if !domainAllowed(opts.Domain, opts.AllowedDomains) {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingCredentials, opts.Domain)
	}

	return &httpConnection{client: client, domain: opts.Domain, allowedDomains: opts.AllowedDomains}, nil
}

// domainAllowed reports whether target's scheme://host matches one of allowed. An
// empty allowed list means every domain is permitted.
func domainAllowed(target string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	origin := u.Scheme + "://" + u.Host
	for _, a := range allowed {
		if a == origin {
			return true
		}
	}
	return false
}

type httpConnection struct {
	client         *http.Client
	domain         string
	allowedDomains []string
}

func (c *httpConnection) Domain() string {
	return c.domain
}

func (c *httpConnection) resolveURL(target string) (string, error) {
	resolved := target
	if u, err := url.Parse(target); err != nil || !u.IsAbs() {
		resolved = c.domain + target
	}
	if !domainAllowed(resolved, c.allowedDomains) {
		return "", fmt.Errorf("target domain not allowed: %s", resolved)
	}
	return resolved, nil
}

func (c *httpConnection) Get(ctx context.Context, target string) (models.JSON, error) {
	resolved, err := c.resolveURL(target)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build GET request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: failed to read body: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{URL: target, StatusCode: resp.StatusCode}
	}

	var decoded models.JSON
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("GET %s: invalid JSON response: %w", target, err)
		}
	}

	return decoded, nil
}

func (c *httpConnection) Put(ctx context.Context, target string, data models.JSON, headers map[string]string) (http.Header, error) {
	return c.write(ctx, http.MethodPut, target, data, headers)
}

func (c *httpConnection) Post(ctx context.Context, target string, data models.JSON, headers map[string]string) (http.Header, error) {
	return c.write(ctx, http.MethodPost, target, data, headers)
}

func (c *httpConnection) write(ctx context.Context, method, target string, data models.JSON, headers map[string]string) (http.Header, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	resolved, err := c.resolveURL(target)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, resolved, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{URL: target, StatusCode: resp.StatusCode}
	}

	logger.Logger.Debug("transport: wrote resource", "method", method, "target", target, "status", resp.StatusCode)

	return resp.Header, nil
}

// HTTPError is surfaced for any non-2xx response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// NotFound reports whether the error is an HTTPError with status 404.
func NotFound(err error) bool {
	var httpErr *HTTPError
	if ok := asHTTPError(err, &httpErr); ok {
		return httpErr.StatusCode == http.StatusNotFound
	}
	return false
}

func asHTTPError(err error, target **HTTPError) bool {
	httpErr, ok := err.(*HTTPError)
	if ok {
		*target = httpErr
	}
	return ok
}
