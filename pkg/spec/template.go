package spec

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// placeholderRegex matches {{expression}} patterns with optional whitespace.
var placeholderRegex = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// ExpandOptions controls placeholder expansion. The zero value uses the
// process environment, the real clock, and random UUIDs.
type ExpandOptions struct {
	// Vars overrides or extends the suite's own vars.
	Vars map[string]string

	// Env looks up environment variables. Defaults to os.LookupEnv.
	Env func(string) (string, bool)

	// Now supplies the current time. Defaults to time.Now.
	Now func() time.Time

	// NewID supplies {{uuid}} values. Defaults to uuid.NewString.
	NewID func() string
}

// Expand resolves {{...}} placeholders in every string field of the
// suite: baseUrl, auth, vars, request paths, headers, query values, and
// string leaves inside request and expected bodies.
//
// Supported expressions:
//
//	{{env NAME}}          environment variable (must be set)
//	{{var name}}          suite var or ExpandOptions.Vars entry
//	{{uuid}}              random UUID
//	{{now}}               current time, RFC 3339
//	{{now.unix}}          current time, Unix seconds
//	{{now.unix_ms}}       current time, Unix milliseconds
//
// Unknown expressions and missing names are reported as errors rather
// than expanded to an empty string, so typos surface at load time instead
// of as baffling mismatches at run time.
func Expand(s *Suite, opts ExpandOptions) error {
	if opts.Env == nil {
		opts.Env = os.LookupEnv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	vars := make(map[string]string, len(s.Vars)+len(opts.Vars))
	// Suite vars may themselves reference the environment.
	for k, v := range s.Vars {
		expanded, err := expandString(v, nil, opts)
		if err != nil {
			return fmt.Errorf("vars.%s: %w", k, err)
		}
		vars[k] = expanded
	}
	for k, v := range opts.Vars {
		vars[k] = v
	}
	s.Vars = vars

	var err error
	if s.BaseURL, err = expandString(s.BaseURL, vars, opts); err != nil {
		return fmt.Errorf("baseUrl: %w", err)
	}
	if s.Auth != nil {
		if s.Auth.TokenURL, err = expandString(s.Auth.TokenURL, vars, opts); err != nil {
			return fmt.Errorf("auth.tokenUrl: %w", err)
		}
		if s.Auth.ClientID, err = expandString(s.Auth.ClientID, vars, opts); err != nil {
			return fmt.Errorf("auth.clientId: %w", err)
		}
		if s.Auth.ClientSecret, err = expandString(s.Auth.ClientSecret, vars, opts); err != nil {
			return fmt.Errorf("auth.clientSecret: %w", err)
		}
	}
	if s.Defaults != nil {
		if err := expandStringMap(s.Defaults.Headers, vars, opts); err != nil {
			return fmt.Errorf("defaults.headers: %w", err)
		}
	}

	for i := range s.Tests {
		t := &s.Tests[i]
		if t.Request.Path, err = expandString(t.Request.Path, vars, opts); err != nil {
			return fmt.Errorf("test %q: request.path: %w", t.Name, err)
		}
		if err := expandStringMap(t.Request.Headers, vars, opts); err != nil {
			return fmt.Errorf("test %q: request.headers: %w", t.Name, err)
		}
		if err := expandStringMap(t.Request.Query, vars, opts); err != nil {
			return fmt.Errorf("test %q: request.query: %w", t.Name, err)
		}
		if err := expandStringMap(t.Expect.Headers, vars, opts); err != nil {
			return fmt.Errorf("test %q: expect.headers: %w", t.Name, err)
		}
		if t.Request.Body, err = expandAny(t.Request.Body, vars, opts); err != nil {
			return fmt.Errorf("test %q: request.body: %w", t.Name, err)
		}
		if t.Expect.Body, err = expandAny(t.Expect.Body, vars, opts); err != nil {
			return fmt.Errorf("test %q: expect.body: %w", t.Name, err)
		}
	}
	return nil
}

// expandString replaces every placeholder in s. The first failing
// expression aborts the expansion.
func expandString(s string, vars map[string]string, opts ExpandOptions) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	var firstErr error
	out := placeholderRegex.ReplaceAllStringFunc(s, func(m string) string {
		groups := placeholderRegex.FindStringSubmatch(m)
		if len(groups) < 2 {
			return m
		}
		val, err := evaluate(strings.TrimSpace(groups[1]), vars, opts)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func expandStringMap(m map[string]string, vars map[string]string, opts ExpandOptions) error {
	for k, v := range m {
		expanded, err := expandString(v, vars, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		m[k] = expanded
	}
	return nil
}

// expandAny walks a normalized JSON value and expands string leaves.
func expandAny(v any, vars map[string]string, opts ExpandOptions) (any, error) {
	switch x := v.(type) {
	case string:
		return expandString(x, vars, opts)
	case map[string]any:
		for k, child := range x {
			expanded, err := expandAny(child, vars, opts)
			if err != nil {
				return nil, err
			}
			x[k] = expanded
		}
		return x, nil
	case []any:
		for i, child := range x {
			expanded, err := expandAny(child, vars, opts)
			if err != nil {
				return nil, err
			}
			x[i] = expanded
		}
		return x, nil
	default:
		return v, nil
	}
}

// evaluate resolves a single placeholder expression.
func evaluate(expr string, vars map[string]string, opts ExpandOptions) (string, error) {
	switch expr {
	case "uuid":
		return opts.NewID(), nil
	case "now":
		return opts.Now().UTC().Format(time.RFC3339), nil
	case "now.unix":
		return strconv.FormatInt(opts.Now().Unix(), 10), nil
	case "now.unix_ms":
		return strconv.FormatInt(opts.Now().UnixMilli(), 10), nil
	}

	if name, ok := strings.CutPrefix(expr, "env "); ok {
		name = strings.TrimSpace(name)
		val, found := opts.Env(name)
		if !found {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return val, nil
	}
	if name, ok := strings.CutPrefix(expr, "var "); ok {
		name = strings.TrimSpace(name)
		val, found := vars[name]
		if !found {
			return "", fmt.Errorf("var %q is not defined", name)
		}
		return val, nil
	}

	return "", fmt.Errorf("unknown expression {{%s}}", expr)
}
