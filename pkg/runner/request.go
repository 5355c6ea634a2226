package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/specrun/specrun/pkg/oauth"
	"github.com/specrun/specrun/pkg/report"
	"github.com/specrun/specrun/pkg/spec"
)

// response is one captured HTTP exchange.
type response struct {
	status  int
	header  http.Header
	body    []byte
	elapsed time.Duration
}

// attempt sends the test's request once and evaluates the expectations.
// A nil failure means the attempt passed.
func (r *Runner) attempt(ctx context.Context, suite *spec.Suite, test *spec.Test, tokens *oauth.Client) (report.Status, *report.Failure) {
	timeout := suite.EffectiveTimeout(test)
	if timeout == 0 {
		timeout = r.opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := r.buildRequest(ctx, suite, test, tokens)
	if err != nil {
		return report.StatusError, &report.Failure{Check: "request", Message: err.Error()}
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return report.StatusError, &report.Failure{
			Check:   "request",
			Message: fmt.Sprintf("request %s %s failed: %v", req.Method, req.URL, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return report.StatusError, &report.Failure{
			Check:   "request",
			Message: fmt.Sprintf("reading response body: %v", err),
		}
	}
	elapsed := time.Since(start)

	// Drop the cached token so a retry fetches a fresh one.
	if resp.StatusCode == http.StatusUnauthorized && tokens != nil {
		tokens.Invalidate()
	}

	captured := &response{
		status:  resp.StatusCode,
		header:  resp.Header,
		body:    body,
		elapsed: elapsed,
	}
	if failure := r.evaluate(test, captured); failure != nil {
		return report.StatusFailed, failure
	}
	return report.StatusPassed, nil
}

// buildRequest assembles the HTTP request for a test, including suite
// default headers, query parameters, the JSON body, and a bearer token
// when the suite authenticates.
func (r *Runner) buildRequest(ctx context.Context, suite *spec.Suite, test *spec.Test, tokens *oauth.Client) (*http.Request, error) {
	target, err := joinURL(suite.BaseURL, test.Request.Path)
	if err != nil {
		return nil, err
	}
	if len(test.Request.Query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid request URL %q: %w", target, err)
		}
		q := u.Query()
		for k, v := range test.Request.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var body io.Reader
	if test.Request.Body != nil {
		payload, err := json.Marshal(test.Request.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(test.Request.Method), target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, v := range suite.EffectiveHeaders(test) {
		req.Header.Set(k, v)
	}
	if test.Request.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if tokens != nil {
		token, err := tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	return req, nil
}

// joinURL joins the suite base URL with a test path. Absolute URLs in the
// path bypass the base.
func joinURL(base, path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	if base == "" {
		return "", fmt.Errorf("test path %q is relative and the suite has no baseUrl", path)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/"), nil
}
