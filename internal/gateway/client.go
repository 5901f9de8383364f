package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"registry-console/internal/obs"
)

// TokenSource supplies the bearer token for outgoing requests and accepts
// replacements minted by the silent refresh. The session store implements it.
type TokenSource interface {
	Token() string
	// ReplaceToken swaps the access token atomically so a request queued
	// behind a refresh never reads the stale one.
	ReplaceToken(token string) error
	// Invalidate clears the stored session after a failed refresh.
	Invalidate()
}

// Client is a typed REST client for the registry gateway.
type Client struct {
	baseURL *url.URL
	hc      *http.Client
	tokens  TokenSource
	idgen   func() string
}

// Options configures a Client.
type Options struct {
	// BaseURL is the gateway root, e.g. http://localhost:3000.
	BaseURL string
	// Tokens supplies and receives bearer tokens. May be nil for
	// unauthenticated use.
	Tokens TokenSource
	// Timeout bounds each HTTP exchange. Defaults to 20s.
	Timeout time.Duration
	// IDGen mints Idempotency-Key values. Defaults are wired by the caller
	// from the ids package.
	IDGen func() string
}

// NewClient validates opts and builds a client. The client keeps a cookie jar
// so the gateway's httpOnly refresh cookie survives between login and refresh.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("gateway: base url is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: invalid base url %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	jar, _ := cookiejar.New(nil)

	idgen := opts.IDGen
	if idgen == nil {
		idgen = func() string { return "" }
	}

	return &Client{
		baseURL: u,
		hc:      &http.Client{Jar: jar, Timeout: timeout},
		tokens:  opts.Tokens,
		idgen:   idgen,
	}, nil
}

// doJSON sends one JSON request and decodes a JSON response into out (out may
// be nil for endpoints the gateway answers with plain text).
//
// On the first 401 it runs exactly one silent refresh and replays the request
// once; a 401 on the replay propagates. A failed refresh invalidates the
// token source and still propagates the original 401.
func (c *Client) doJSON(ctx context.Context, method, path, pathTemplate string, in, out any, idempotent bool) error {
	var body []byte
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		body = b
		contentType = "application/json"
	}
	return c.roundTrip(ctx, method, path, pathTemplate, contentType, body, out, idempotent)
}

func (c *Client) roundTrip(ctx context.Context, method, path, pathTemplate, contentType string, body []byte, out any, idempotent bool) error {
	idemKey := ""
	if idempotent {
		idemKey = c.idgen()
	}

	resp, raw, err := c.send(ctx, method, path, pathTemplate, contentType, body, idemKey)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil && refreshable(pathTemplate) && c.tokens.Token() != "" {
		origErr := apiError(resp, raw)
		if refreshErr := c.refresh(ctx); refreshErr != nil {
			c.tokens.Invalidate()
			return origErr
		}
		resp, raw, err = c.send(ctx, method, path, pathTemplate, contentType, body, idemKey)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}

// refreshable reports whether a 401 on the endpoint should trigger the silent
// refresh. Unauthenticated auth endpoints fail on their own merits (bad
// credentials), not on a stale access token.
func refreshable(pathTemplate string) bool {
	switch pathTemplate {
	case "/auth/login", "/auth/register", "/auth/refresh":
		return false
	}
	return true
}

// send performs a single exchange. The request is rebuilt from the buffered
// body so a replay after refresh sends identical bytes.
func (c *Client) send(ctx context.Context, method, path, pathTemplate, contentType string, body []byte, idemKey string) (*http.Response, []byte, error) {
	u := c.baseURL.JoinPath(strings.Split(strings.TrimPrefix(path, "/"), "/")...)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		u = c.baseURL.JoinPath(strings.Split(strings.TrimPrefix(path[:i], "/"), "/")...)
		u.RawQuery = path[i+1:]
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		obs.ObserveGatewayRequest(method, pathTemplate, 0, time.Since(start))
		return nil, nil, fmt.Errorf("gateway: %s %s: %w", method, pathTemplate, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	obs.ObserveGatewayRequest(method, pathTemplate, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: read response: %w", err)
	}
	return resp, raw, nil
}

// refresh exchanges the httpOnly refresh cookie for a new access token and
// hands it to the token source.
func (c *Client) refresh(ctx context.Context) error {
	obs.CountTokenRefresh("attempt")
	resp, raw, err := c.send(ctx, http.MethodPost, "/auth/refresh", "/auth/refresh", "", nil, "")
	if err != nil {
		obs.CountTokenRefresh("failure")
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		obs.CountTokenRefresh("failure")
		return apiError(resp, raw)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Token == "" {
		obs.CountTokenRefresh("failure")
		return fmt.Errorf("gateway: refresh returned no token")
	}
	if err := c.tokens.ReplaceToken(body.Token); err != nil {
		obs.CountTokenRefresh("failure")
		return err
	}
	obs.CountTokenRefresh("success")
	return nil
}

func apiError(resp *http.Response, raw []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			apiErr.Message = body.Error
		} else {
			apiErr.Message = body.Message
		}
	}
	if apiErr.Message == "" {
		// Some endpoints answer with a bare text body.
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func pathEscape(s string) string { return url.PathEscape(s) }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
