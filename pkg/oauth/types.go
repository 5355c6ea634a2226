package oauth

import (
	"fmt"
	"time"
)

// DefaultExpiryMargin is the margin applied when checking token expiry.
// It accounts for clock skew and request latency.
const DefaultExpiryMargin = 30 * time.Second

// DefaultTokenLifetime is assumed when the token endpoint reports no
// expiry and the access token carries no exp claim.
const DefaultTokenLifetime = time.Hour

// Token is an access token with its computed expiry.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresAt is the computed expiration timestamp.
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the token is usable at the given instant, leaving
// margin before the actual expiry.
func (t *Token) Valid(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

// tokenResponse is the token endpoint's wire format.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// errorResponse is the OAuth error wire format.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenError describes a failed token request.
type TokenError struct {
	// StatusCode is the HTTP status returned by the token endpoint.
	StatusCode int
	// Code is the OAuth error code, e.g. "invalid_client".
	Code string
	// Description is the human-readable error description, if any.
	Description string
}

func (e *TokenError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("token request failed with status %d", e.StatusCode)
	}
	if e.Description == "" {
		return fmt.Sprintf("token request failed: %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("token request failed: %s (status %d): %s", e.Code, e.StatusCode, e.Description)
}
