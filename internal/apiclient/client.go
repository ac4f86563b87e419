package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultRefreshPath = "/auth/token/refresh/"
	DefaultLoginPath   = "/auth/login/"
	defaultTimeout     = 15 * time.Second
)

// TokenStore is the slice of the token store the client depends on.
type TokenStore interface {
	AccessToken(ctx context.Context) string
	RefreshToken(ctx context.Context) string
	SetAccessToken(ctx context.Context, access string) error
	Clear(ctx context.Context) error
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenStore
	Logger     *slog.Logger
	UserAgent  string

	// RefreshPath is the token refresh endpoint. Defaults to DefaultRefreshPath.
	RefreshPath string
	// LoginPaths never trigger a refresh on 401. Defaults to DefaultLoginPath.
	LoginPaths []string
	// OnSessionExpired runs after a failed refresh has cleared the session.
	OnSessionExpired func()
}

// Client is the single choke point for backend calls. It attaches the bearer
// token, normalizes mutating paths and transparently recovers once from an
// expired access token.
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenStore
	log         *slog.Logger
	userAgent   string
	refreshPath string
	loginPaths  map[string]struct{}

	mu        sync.Mutex
	onExpired func()
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	refreshPath := opts.RefreshPath
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}
	loginPaths := opts.LoginPaths
	if len(loginPaths) == 0 {
		loginPaths = []string{DefaultLoginPath}
	}

	c := &Client{
		baseURL:     base,
		http:        httpClient,
		tokens:      opts.Tokens,
		log:         log.With(slog.String("component", "apiclient")),
		userAgent:   opts.UserAgent,
		refreshPath: NormalizePath(http.MethodPost, refreshPath),
		loginPaths:  make(map[string]struct{}, len(loginPaths)),
		onExpired:   opts.OnSessionExpired,
	}
	for _, p := range loginPaths {
		c.loginPaths[pathOnly(NormalizePath(http.MethodPost, p))] = struct{}{}
	}
	return c, nil
}

// SetSessionExpiredHandler replaces the hook run after a failed refresh.
func (c *Client) SetSessionExpiredHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = fn
}

type RequestOption func(*http.Request)

func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

func WithQuery(q url.Values) RequestOption {
	return func(r *http.Request) {
		if len(q) == 0 {
			return
		}
		existing := r.URL.Query()
		for k, vs := range q {
			for _, v := range vs {
				existing.Add(k, v)
			}
		}
		r.URL.RawQuery = existing.Encode()
	}
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do sends a JSON request and decodes a 2xx response body into out (when out is
// non-nil and the body is non-empty). Non-2xx responses surface as *Error.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = b
	}

	data, err := c.send(ctx, call{
		method:  method,
		path:    NormalizePath(method, path),
		payload: payload,
		opts:    opts,
	})
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// call describes one logical request. retried is scoped to the call, so a
// refresh on one request never affects another in flight.
type call struct {
	method  string
	path    string
	payload []byte
	opts    []RequestOption
	retried bool
	token   string
}

func (c *Client) send(ctx context.Context, cl call) ([]byte, error) {
	token := cl.token
	if token == "" {
		token = c.tokens.AccessToken(ctx)
	}

	status, data, err := c.roundTrip(ctx, cl.method, cl.path, cl.payload, token, cl.opts)
	if err != nil {
		return nil, err
	}
	if status >= 200 && status < 300 {
		return data, nil
	}

	apiErr := newError(cl.method, cl.path, status, data)
	if status != http.StatusUnauthorized || cl.retried || c.isAuthPath(cl.path) {
		return nil, apiErr
	}

	access, ok := c.refresh(ctx)
	if !ok {
		return nil, apiErr
	}

	cl.retried = true
	cl.token = access
	return c.send(ctx, cl)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, token string, opts []RequestOption) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", slog.String("method", method), slog.String("path", path), slog.Any("err", err))
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	c.log.Debug(
		"request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp.StatusCode, data, nil
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access      string `json:"access"`
	AccessToken string `json:"access_token"`
}

// refresh mints a new access token. On failure the session is cleared and the
// expiry hook runs; a missing refresh token or a cancelled caller context fails
// without touching the store.
func (c *Client) refresh(ctx context.Context) (string, bool) {
	rt := c.tokens.RefreshToken(ctx)
	if rt == "" {
		c.log.Debug("no refresh token; not retrying")
		return "", false
	}

	payload, err := json.Marshal(refreshRequest{Refresh: rt})
	if err != nil {
		return "", false
	}

	status, data, err := c.roundTrip(ctx, http.MethodPost, c.refreshPath, payload, "", nil)
	var access string
	if err == nil && status >= 200 && status < 300 {
		var out refreshResponse
		if jsonErr := json.Unmarshal(data, &out); jsonErr == nil {
			access = out.Access
			if access == "" {
				access = out.AccessToken
			}
		}
	}

	if access == "" && ctx.Err() != nil {
		c.log.Debug("token refresh abandoned; caller context done", slog.Any("err", ctx.Err()))
		return "", false
	}

	if access == "" {
		c.log.Warn("token refresh failed; clearing session", slog.Int("status", status), slog.Any("err", err))
		if clearErr := c.tokens.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			c.log.Error("session clear after failed refresh", slog.Any("err", clearErr))
		}
		c.mu.Lock()
		hook := c.onExpired
		c.mu.Unlock()
		if hook != nil {
			hook()
		}
		return "", false
	}

	if err := c.tokens.SetAccessToken(ctx, access); err != nil {
		c.log.Error("refreshed access token not persisted", slog.Any("err", err))
	}
	c.log.Info("access token refreshed")
	return access, true
}

func (c *Client) isAuthPath(path string) bool {
	p := pathOnly(path)
	if p == pathOnly(c.refreshPath) {
		return true
	}
	_, ok := c.loginPaths[p]
	return ok
}
