// Package spec defines the declarative suite format for specrun and its
// loading, expansion, and validation.
package spec

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Suite is one declarative test suite, loaded from a JSON or YAML file.
type Suite struct {
	Name     string            `json:"name" yaml:"name"`
	Version  string            `json:"version,omitempty" yaml:"version,omitempty"`
	BaseURL  string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Defaults *Defaults         `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Auth     *AuthConfig       `json:"auth,omitempty" yaml:"auth,omitempty"`
	Vars     map[string]string `json:"vars,omitempty" yaml:"vars,omitempty"`
	Tests    []Test            `json:"tests" yaml:"tests"`

	// Source is the file the suite was loaded from. Set by the loader,
	// never serialized.
	Source string `json:"-" yaml:"-"`
}

// Defaults applies to every test in a suite unless the test overrides it.
type Defaults struct {
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retry   *RetryConfig      `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// Test is a single request/response check.
type Test struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Skip        bool         `json:"skip,omitempty" yaml:"skip,omitempty"`
	Request     Request      `json:"request" yaml:"request"`
	Expect      Expect       `json:"expect" yaml:"expect"`
	Exclude     []string     `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Wildcard    bool         `json:"wildcard,omitempty" yaml:"wildcard,omitempty"`
	Retry       *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// Request describes the HTTP request a test sends.
type Request struct {
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Body    any               `json:"body,omitempty" yaml:"body,omitempty"`
	Timeout Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Expect describes the checks run against the response. Body is a partial
// match template: the response may carry extra object keys and extra
// sequence elements; paths listed in Test.Exclude are never inspected.
type Expect struct {
	Status      int               `json:"status" yaml:"status"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body        any               `json:"body,omitempty" yaml:"body,omitempty"`
	Schema      any               `json:"schema,omitempty" yaml:"schema,omitempty"`
	JSONPath    map[string]any    `json:"jsonPath,omitempty" yaml:"jsonPath,omitempty"`
	Expr        []string          `json:"expr,omitempty" yaml:"expr,omitempty"`
	MaxDuration Duration          `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`
}

// AuthConfig configures how the runner authenticates requests.
type AuthConfig struct {
	Type         string   `json:"type" yaml:"type"`
	TokenURL     string   `json:"tokenUrl,omitempty" yaml:"tokenUrl,omitempty"`
	ClientID     string   `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	ClientSecret string   `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	CacheFile    string   `json:"cacheFile,omitempty" yaml:"cacheFile,omitempty"`
}

// Auth types.
const (
	AuthNone   = "none"
	AuthOAuth2 = "oauth2"
)

// RetryConfig retries a failed test before reporting it.
type RetryConfig struct {
	Count             int      `json:"count" yaml:"count"`
	Delay             Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
	BackoffMultiplier float64  `json:"backoffMultiplier,omitempty" yaml:"backoffMultiplier,omitempty"`
}

// Duration wraps time.Duration for JSON and YAML. It accepts either a
// duration string ("500ms", "2s") or a bare number of seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "2s" or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts "2s" or a number of seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d *Duration) set(raw any) error {
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
		return nil
	case int:
		*d = Duration(time.Duration(v) * time.Second)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v (want string or seconds)", raw)
	}
}

// EffectiveTimeout resolves the request timeout for a test against the
// suite defaults. Zero means no timeout beyond the client's own.
func (s *Suite) EffectiveTimeout(t *Test) time.Duration {
	if t.Request.Timeout != 0 {
		return t.Request.Timeout.Std()
	}
	if s.Defaults != nil {
		return s.Defaults.Timeout.Std()
	}
	return 0
}

// EffectiveRetry resolves the retry policy for a test against the suite
// defaults. Nil means a single attempt.
func (s *Suite) EffectiveRetry(t *Test) *RetryConfig {
	if t.Retry != nil {
		return t.Retry
	}
	if s.Defaults != nil {
		return s.Defaults.Retry
	}
	return nil
}

// EffectiveHeaders merges the suite default headers with the test's own.
// Test headers win on conflict.
func (s *Suite) EffectiveHeaders(t *Test) map[string]string {
	if s.Defaults == nil || len(s.Defaults.Headers) == 0 {
		return t.Request.Headers
	}
	merged := make(map[string]string, len(s.Defaults.Headers)+len(t.Request.Headers))
	for k, v := range s.Defaults.Headers {
		merged[k] = v
	}
	for k, v := range t.Request.Headers {
		merged[k] = v
	}
	return merged
}

// HasTag reports whether the test carries the given tag.
func (t *Test) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}
