package oauth

import (
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

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// DefaultHTTPTimeout is the default timeout for token requests.
const DefaultHTTPTimeout = 30 * time.Second

// Config holds the client credentials grant settings.
type Config struct {
	// TokenURL is the token endpoint.
	TokenURL string
	// ClientID and ClientSecret authenticate the client.
	ClientID     string
	ClientSecret string
	// Scopes are requested space-joined, if any.
	Scopes []string
	// CacheFile, when set, persists the token across runs.
	CacheFile string
}

// Client obtains access tokens via the OAuth 2.0 client credentials grant.
// Tokens are cached in memory, and optionally on disk, until shortly
// before expiry. Client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	margin     time.Duration

	mu    sync.RWMutex
	token *Token

	// singleflight group to deduplicate concurrent token fetches
	group singleflight.Group
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithExpiryMargin sets how long before the actual expiry a token is
// treated as expired.
func WithExpiryMargin(margin time.Duration) ClientOption {
	return func(c *Client) {
		c.margin = margin
	}
}

// WithNow sets the clock. Used in tests.
func WithNow(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client for the given credentials.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
		now:        time.Now,
		margin:     DefaultExpiryMargin,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or about to expire. Concurrent callers share a single
// fetch.
func (c *Client) Token(ctx context.Context) (*Token, error) {
	c.mu.RLock()
	if c.token.Valid(c.now(), c.margin) {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do("token", func() (interface{}, error) {
		// Double-check after acquiring the singleflight slot
		c.mu.RLock()
		if c.token.Valid(c.now(), c.margin) {
			token := c.token
			c.mu.RUnlock()
			return token, nil
		}
		c.mu.RUnlock()

		if token := c.loadCached(); token != nil {
			c.store(token)
			return token, nil
		}

		token, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.saveCached(token)
		c.store(token)
		return token, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*Token), nil
}

// Invalidate drops the cached token so the next Token call fetches a
// fresh one. Call it after a request is rejected with 401 despite a
// seemingly valid token.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	if c.cfg.CacheFile != "" {
		if err := removeCacheFile(c.cfg.CacheFile); err != nil {
			c.logger.Warn("Failed to remove token cache file",
				"path", c.cfg.CacheFile,
				"error", err)
		}
	}
}

// fetch performs the client credentials token request.
func (c *Client) fetch(ctx context.Context) (*Token, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	if len(c.cfg.Scopes) > 0 {
		data.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		tokenErr := &TokenError{StatusCode: resp.StatusCode}
		var oauthErr errorResponse
		if json.Unmarshal(body, &oauthErr) == nil {
			tokenErr.Code = oauthErr.Error
			tokenErr.Description = oauthErr.ErrorDescription
		}
		return nil, tokenErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	token := &Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		ExpiresAt:   c.expiry(tr),
	}

	c.logger.Debug("Fetched access token",
		"token_url", c.cfg.TokenURL,
		"expires_at", token.ExpiresAt)

	return token, nil
}

// expiry computes when the token expires. The expires_in field wins; a
// token without one is inspected for a JWT exp claim; failing both, the
// default lifetime applies.
func (c *Client) expiry(tr tokenResponse) time.Time {
	if tr.ExpiresIn > 0 {
		return c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if exp, ok := jwtExpiry(tr.AccessToken); ok {
		return exp
	}
	return c.now().Add(DefaultTokenLifetime)
}

func (c *Client) store(token *Token) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// loadCached returns a still-valid token from the cache file, or nil.
func (c *Client) loadCached() *Token {
	if c.cfg.CacheFile == "" {
		return nil
	}

	token, err := readCacheFile(c.cfg.CacheFile)
	if err != nil {
		c.logger.Debug("Token cache file unusable",
			"path", c.cfg.CacheFile,
			"error", err)
		return nil
	}
	if !token.Valid(c.now(), c.margin) {
		return nil
	}
	return token
}

func (c *Client) saveCached(token *Token) {
	if c.cfg.CacheFile == "" {
		return
	}
	if err := writeCacheFile(c.cfg.CacheFile, token); err != nil {
		c.logger.Warn("Failed to write token cache file",
			"path", c.cfg.CacheFile,
			"error", err)
	}
}

// jwtExpiry extracts the exp claim from a JWT access token without
// verifying the signature. The claim is only used to decide when to
// refresh, never to accept the token.
func jwtExpiry(tokenString string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
