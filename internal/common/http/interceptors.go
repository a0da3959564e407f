package http

import (
	"context"
	"net/http"
	"strings"

	"api-client/internal/common/errors"
	"api-client/internal/common/ratelimit"
)

// DefaultMaxURLLength is the longest GET URL sent as-is
const DefaultMaxURLLength = 2048

// MethodOverrideHeader carries the original method of a rewritten request
const MethodOverrideHeader = "X-HTTP-Method-Override"

// MaxURLLengthInterceptor turns a GET whose URL is longer than MaxURLLength
// into a POST carrying the query string as a form body, with the original
// method in the X-HTTP-Method-Override header.
type MaxURLLengthInterceptor struct {
	MaxURLLength int
}

// NewMaxURLLengthInterceptor creates the interceptor. A length of 0 disables it.
func NewMaxURLLengthInterceptor(maxURLLength int) *MaxURLLengthInterceptor {
	return &MaxURLLengthInterceptor{MaxURLLength: maxURLLength}
}

// Intercept implements Interceptor
func (i *MaxURLLengthInterceptor) Intercept(ctx context.Context, req *http.Request) error {
	if i.MaxURLLength <= 0 || req.Method != http.MethodGet {
		return nil
	}

	if len(req.URL.String()) <= i.MaxURLLength {
		return nil
	}

	query := req.URL.RawQuery

	req.Method = http.MethodPost
	req.Header.Set(MethodOverrideHeader, http.MethodGet)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	SetBody(req, []byte(query))

	u := *req.URL
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	req.URL = &u

	return nil
}

// UserAgentInterceptor sets the User-Agent header
type UserAgentInterceptor struct {
	UserAgent string
}

// NewUserAgentInterceptor builds "<application> api-client/1.0", with a gzip
// marker when compressed responses are negotiated.
func NewUserAgentInterceptor(applicationName string, gzipEnabled bool) *UserAgentInterceptor {
	parts := []string{}
	if applicationName != "" {
		parts = append(parts, applicationName)
	}
	parts = append(parts, "api-client/1.0")
	if gzipEnabled {
		parts = append(parts, "(gzip)")
	}
	return &UserAgentInterceptor{UserAgent: strings.Join(parts, " ")}
}

// Intercept implements Interceptor
func (i *UserAgentInterceptor) Intercept(ctx context.Context, req *http.Request) error {
	req.Header.Set("User-Agent", i.UserAgent)
	return nil
}

// RateLimitInterceptor delays requests so each host stays under its rate limit
type RateLimitInterceptor struct {
	limiter ratelimit.Limiter
}

// NewRateLimitInterceptor creates a rate limiting interceptor
func NewRateLimitInterceptor(limiter ratelimit.Limiter) *RateLimitInterceptor {
	return &RateLimitInterceptor{limiter: limiter}
}

// Intercept implements Interceptor
func (i *RateLimitInterceptor) Intercept(ctx context.Context, req *http.Request) error {
	if err := i.limiter.WaitForKey(ctx, req.URL.Host); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rateErr := errors.RateLimitError(req.URL.Host)
		rateErr.Cause = err
		return rateErr
	}
	return nil
}
