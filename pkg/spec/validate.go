package spec

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/specrun/specrun/pkg/match"
)

// ValidationError represents a single suite validation error.
type ValidationError struct {
	Path    string // Suite path, e.g. "tests[0].expect.status"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationResult contains all validation errors for a Suite.
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message.
func (r *ValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: message})
}

// Err returns the result as an error, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	return r
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Validate checks a decoded Suite structurally and returns every error
// found. Run it after Expand so URL checks see resolved values.
func Validate(s *Suite) *ValidationResult {
	result := &ValidationResult{}

	if s.Name == "" {
		result.AddError("name", "required")
	}
	if s.BaseURL != "" && !strings.Contains(s.BaseURL, "{{") {
		if _, err := url.ParseRequestURI(s.BaseURL); err != nil {
			result.AddError("baseUrl", fmt.Sprintf("invalid URL %q", s.BaseURL))
		}
	}
	if s.Auth != nil {
		validateAuth(s.Auth, "auth", result)
	}
	if s.Defaults != nil && s.Defaults.Retry != nil {
		validateRetry(s.Defaults.Retry, "defaults.retry", result)
	}

	if len(s.Tests) == 0 {
		result.AddError("tests", "at least one test is required")
	}

	names := make(map[string]bool)
	for i := range s.Tests {
		validateTest(&s.Tests[i], fmt.Sprintf("tests[%d]", i), names, result)
	}
	return result
}

func validateTest(t *Test, path string, names map[string]bool, result *ValidationResult) {
	if t.Name == "" {
		result.AddError(path+".name", "required")
	} else if names[t.Name] {
		result.AddError(path+".name", fmt.Sprintf("duplicate test name %q", t.Name))
	} else {
		names[t.Name] = true
	}

	if t.Request.Method == "" {
		result.AddError(path+".request.method", "required")
	} else if !validMethods[strings.ToUpper(t.Request.Method)] {
		result.AddError(path+".request.method", fmt.Sprintf("unsupported method %q", t.Request.Method))
	}
	if t.Request.Path == "" {
		result.AddError(path+".request.path", "required")
	}

	if t.Expect.Status == 0 {
		result.AddError(path+".expect.status", "required")
	} else if t.Expect.Status < 100 || t.Expect.Status > 599 {
		result.AddError(path+".expect.status", fmt.Sprintf("status %d out of range", t.Expect.Status))
	}

	if t.Wildcard {
		excl := match.Exclusions{Patterns: t.Exclude, Wildcard: true}
		if err := excl.Validate(); err != nil {
			result.AddError(path+".exclude", err.Error())
		}
	}

	for expr := range t.Expect.JSONPath {
		if _, err := jp.ParseString(expr); err != nil {
			result.AddError(path+".expect.jsonPath", fmt.Sprintf("invalid JSONPath expression %q", expr))
		}
	}

	if t.Retry != nil {
		validateRetry(t.Retry, path+".retry", result)
	}
}

func validateAuth(a *AuthConfig, path string, result *ValidationResult) {
	switch a.Type {
	case "", AuthNone:
		return
	case AuthOAuth2:
		if a.TokenURL == "" {
			result.AddError(path+".tokenUrl", "required for oauth2")
		} else if !strings.Contains(a.TokenURL, "{{") {
			if _, err := url.ParseRequestURI(a.TokenURL); err != nil {
				result.AddError(path+".tokenUrl", fmt.Sprintf("invalid URL %q", a.TokenURL))
			}
		}
		if a.ClientID == "" {
			result.AddError(path+".clientId", "required for oauth2")
		}
		if a.ClientSecret == "" {
			result.AddError(path+".clientSecret", "required for oauth2")
		}
	default:
		result.AddError(path+".type", fmt.Sprintf("unsupported auth type %q", a.Type))
	}
}

func validateRetry(r *RetryConfig, path string, result *ValidationResult) {
	if r.Count < 0 {
		result.AddError(path+".count", "must not be negative")
	}
	if r.Delay < 0 {
		result.AddError(path+".delay", "must not be negative")
	}
	if r.BackoffMultiplier != 0 && r.BackoffMultiplier < 1 {
		result.AddError(path+".backoffMultiplier", "must be at least 1")
	}
}
