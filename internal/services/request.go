package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"api-client/internal/common/errors"
	"api-client/internal/common/logging"
)

type queryParam struct {
	key, value string
}

// Request is one call to a service, decoded into T on success
type Request[T any] struct {
	service *BaseClientService
	method  string
	path    string
	query   []queryParam
	header  http.Header
	body    interface{}
}

// NewRequest creates a request for path, relative to the service's base URI and path
func NewRequest[T any](service *BaseClientService, method, path string) *Request[T] {
	return &Request[T]{
		service: service,
		method:  method,
		path:    path,
		header:  http.Header{},
	}
}

// WithQuery adds a query parameter. Parameters are sent in the order they
// were added, after any already present in the base URI or path.
func (r *Request[T]) WithQuery(key, value string) *Request[T] {
	r.query = append(r.query, queryParam{key: key, value: value})
	return r
}

// WithHeader sets a request header
func (r *Request[T]) WithHeader(key, value string) *Request[T] {
	r.header.Set(key, value)
	return r
}

// WithBody sets the request body, encoded with the service serializer
func (r *Request[T]) WithBody(body interface{}) *Request[T] {
	r.body = body
	return r
}

// URL resolves the request URL
func (r *Request[T]) URL() (*url.URL, error) {
	raw := r.service.BaseURI() + r.service.BasePath()
	if r.path != "" {
		raw = strings.TrimSuffix(raw, "/") + "/" + strings.TrimPrefix(r.path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.ValidationError("invalid request URL: " + err.Error())
	}

	if len(r.query) > 0 {
		parts := make([]string, 0, len(r.query)+1)
		if u.RawQuery != "" {
			parts = append(parts, u.RawQuery)
		}
		for _, param := range r.query {
			parts = append(parts, url.QueryEscape(param.key)+"="+url.QueryEscape(param.value))
		}
		u.RawQuery = strings.Join(parts, "&")
	}
	return u, nil
}

// CreateRequest builds the HTTP request
func (r *Request[T]) CreateRequest(ctx context.Context) (*http.Request, error) {
	u, err := r.URL()
	if err != nil {
		return nil, err
	}

	var body *strings.Reader
	if r.body != nil {
		encoded, err := r.service.SerializeObject(r.body)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(encoded)
	}

	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, r.method, u.String(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, r.method, u.String(), nil)
	}
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}

	for key, values := range r.header {
		req.Header[key] = append([]string(nil), values...)
	}
	if r.body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/"+r.service.Serializer().Format())
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/"+r.service.Serializer().Format())
	}
	return req, nil
}

// ExecuteRaw sends the request and returns the successful response with its
// body unread. With a response cache, a 304 answer to a revalidated GET is
// served from the cache as a 200. Non-2xx answers are returned as errors: 401 as an
// authentication error, anything else as a request error whose cause is a
// *RequestError.
func (r *Request[T]) ExecuteRaw(ctx context.Context) (*http.Response, error) {
	req, err := r.CreateRequest(ctx)
	if err != nil {
		return nil, err
	}

	var (
		cacheKey string
		cached   *cachedResponse
	)
	if r.service.responseCache != nil && r.method == http.MethodGet && req.Header.Get("If-None-Match") == "" {
		cacheKey = responseCacheKey(req)
		if cached = r.service.lookupCached(ctx, cacheKey); cached != nil {
			req.Header.Set("If-None-Match", cached.ETag)
		}
	}

	var resp *http.Response
	call := func() error {
		var err error
		resp, err = r.service.httpClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusNotModified && cached != nil {
			resp.Body.Close()
			resp = cached.toResponse(req)
			return nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := r.service.responseError(resp)
			resp = nil
			return err
		}
		if cacheKey != "" {
			return r.service.storeCached(ctx, cacheKey, resp)
		}
		return nil
	}

	if r.service.breaker != nil {
		err = r.service.breaker.Execute(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		r.service.logger.Debug("Request failed",
			logging.String("method", r.method),
			logging.String("path", r.path),
			logging.Err(err),
		)
		return nil, err
	}
	return resp, nil
}

// Execute sends the request and decodes the response into T
func (r *Request[T]) Execute(ctx context.Context) (T, error) {
	var result T

	resp, err := r.ExecuteRaw(ctx)
	if err != nil {
		return result, err
	}
	if err := r.service.DeserializeResponse(resp, &result); err != nil {
		return result, err
	}
	return result, nil
}
