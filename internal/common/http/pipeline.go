package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"api-client/internal/common/errors"
	"api-client/internal/common/logging"
)

// DefaultNumTries is the number of attempts a request gets before the last
// response or error is returned to the caller.
const DefaultNumTries = 3

// Interceptor mutates an outgoing request before every attempt. Implementations
// must be idempotent because retries run them again on the same request.
type Interceptor interface {
	Intercept(ctx context.Context, req *http.Request) error
}

// InterceptorFunc adapts a function to the Interceptor interface
type InterceptorFunc func(ctx context.Context, req *http.Request) error

// Intercept calls f(ctx, req)
func (f InterceptorFunc) Intercept(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}

// UnsuccessfulResponseArgs describes a non-2xx response offered to handlers
type UnsuccessfulResponseArgs struct {
	Request  *http.Request
	Response *http.Response
	// CurrentFailedTry is the 1-based attempt that produced Response.
	CurrentFailedTry int
	TotalTries       int
	// UnauthorizedCount is the number of 401 responses seen for this request,
	// including the current one.
	UnauthorizedCount int
}

// SupportsRetry reports whether another attempt is available
func (a *UnsuccessfulResponseArgs) SupportsRetry() bool {
	return a.CurrentFailedTry < a.TotalTries
}

// UnsuccessfulResponseHandler gets a chance to repair a failed response, for
// example by refreshing credentials or waiting. Returning true retries the request.
type UnsuccessfulResponseHandler interface {
	HandleResponse(ctx context.Context, args *UnsuccessfulResponseArgs) (bool, error)
}

// ExceptionArgs describes a transport failure offered to handlers
type ExceptionArgs struct {
	Request          *http.Request
	Err              error
	CurrentFailedTry int
	TotalTries       int
}

// ExceptionHandler decides whether a transport failure is retried
type ExceptionHandler interface {
	HandleException(ctx context.Context, args *ExceptionArgs) (bool, error)
}

// ConfigurableHTTPClient sends requests through a chain of interceptors and
// retry handlers on top of a plain *http.Client.
type ConfigurableHTTPClient struct {
	client *http.Client
	logger logging.Logger

	mu                   sync.RWMutex
	numTries             int
	interceptors         []Interceptor
	unsuccessfulHandlers []UnsuccessfulResponseHandler
	exceptionHandlers    []ExceptionHandler
}

// NewConfigurableHTTPClient wraps client. A nil client gets NewHTTPClient(),
// a nil logger the global logger.
func NewConfigurableHTTPClient(client *http.Client, logger logging.Logger) *ConfigurableHTTPClient {
	if client == nil {
		client = NewHTTPClient()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &ConfigurableHTTPClient{
		client:   client,
		logger:   logger,
		numTries: DefaultNumTries,
	}
}

// HTTPClient returns the underlying client
func (c *ConfigurableHTTPClient) HTTPClient() *http.Client {
	return c.client
}

// SetNumTries sets the number of attempts per request (minimum 1)
func (c *ConfigurableHTTPClient) SetNumTries(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	c.numTries = n
	c.mu.Unlock()
}

// NumTries returns the number of attempts per request
func (c *ConfigurableHTTPClient) NumTries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.numTries
}

// AddInterceptor appends an interceptor
func (c *ConfigurableHTTPClient) AddInterceptor(i Interceptor) {
	c.mu.Lock()
	c.interceptors = append(c.interceptors, i)
	c.mu.Unlock()
}

// AddUnsuccessfulResponseHandler appends an unsuccessful response handler
func (c *ConfigurableHTTPClient) AddUnsuccessfulResponseHandler(h UnsuccessfulResponseHandler) {
	c.mu.Lock()
	c.unsuccessfulHandlers = append(c.unsuccessfulHandlers, h)
	c.mu.Unlock()
}

// AddExceptionHandler appends an exception handler
func (c *ConfigurableHTTPClient) AddExceptionHandler(h ExceptionHandler) {
	c.mu.Lock()
	c.exceptionHandlers = append(c.exceptionHandlers, h)
	c.mu.Unlock()
}

// Interceptors returns a copy of the registered interceptors
func (c *ConfigurableHTTPClient) Interceptors() []Interceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Interceptor(nil), c.interceptors...)
}

// UnsuccessfulResponseHandlers returns a copy of the registered handlers
func (c *ConfigurableHTTPClient) UnsuccessfulResponseHandlers() []UnsuccessfulResponseHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]UnsuccessfulResponseHandler(nil), c.unsuccessfulHandlers...)
}

// ExceptionHandlers returns a copy of the registered handlers
func (c *ConfigurableHTTPClient) ExceptionHandlers() []ExceptionHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ExceptionHandler(nil), c.exceptionHandlers...)
}

// Do sends req through the pipeline. A non-2xx response that no handler
// retried is returned with a nil error; decoding it is the caller's job.
// Transport failures are returned as connection errors.
func (c *ConfigurableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if err := makeReplayable(req); err != nil {
		return nil, errors.InternalError("failed to buffer request body", err)
	}

	c.mu.RLock()
	tries := c.numTries
	interceptors := append([]Interceptor(nil), c.interceptors...)
	unsuccessfulHandlers := append([]UnsuccessfulResponseHandler(nil), c.unsuccessfulHandlers...)
	exceptionHandlers := append([]ExceptionHandler(nil), c.exceptionHandlers...)
	c.mu.RUnlock()

	logger := c.logger.WithContext(ctx)
	unauthorized := 0

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 1 {
			if err := rewindBody(req); err != nil {
				return nil, errors.InternalError("failed to rewind request body", err)
			}
		}

		for _, interceptor := range interceptors {
			if err := interceptor.Intercept(ctx, req); err != nil {
				return nil, err
			}
		}

		logger.Debug("Sending request",
			logging.String("method", req.Method),
			logging.String("host", req.URL.Host),
			logging.String("path", req.URL.Path),
			logging.Int("attempt", attempt),
		)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			retry, handlerErr := c.handleException(ctx, exceptionHandlers, &ExceptionArgs{
				Request:          req,
				Err:              err,
				CurrentFailedTry: attempt,
				TotalTries:       tries,
			})
			if handlerErr != nil {
				return nil, handlerErr
			}
			if !retry {
				return nil, errors.ConnectionError(fmt.Sprintf("%s %s failed", req.Method, req.URL.Host), err)
			}

			logger.Warn("Retrying request after transport error",
				logging.Int("attempt", attempt),
				logging.Err(err),
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		if resp.StatusCode == http.StatusUnauthorized {
			unauthorized++
		}

		args := &UnsuccessfulResponseArgs{
			Request:           req,
			Response:          resp,
			CurrentFailedTry:  attempt,
			TotalTries:        tries,
			UnauthorizedCount: unauthorized,
		}

		retry, err := c.handleResponse(ctx, unsuccessfulHandlers, args)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		if !retry {
			return resp, nil
		}

		logger.Debug("Retrying request after unsuccessful response",
			logging.Int("status_code", resp.StatusCode),
			logging.Int("attempt", attempt),
		)

		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func (c *ConfigurableHTTPClient) handleResponse(ctx context.Context, handlers []UnsuccessfulResponseHandler, args *UnsuccessfulResponseArgs) (bool, error) {
	if !args.SupportsRetry() {
		return false, nil
	}

	for _, handler := range handlers {
		retry, err := handler.HandleResponse(ctx, args)
		if err != nil {
			return false, err
		}
		if retry {
			return true, nil
		}
	}
	return false, nil
}

func (c *ConfigurableHTTPClient) handleException(ctx context.Context, handlers []ExceptionHandler, args *ExceptionArgs) (bool, error) {
	if args.CurrentFailedTry >= args.TotalTries {
		return false, nil
	}

	for _, handler := range handlers {
		retry, err := handler.HandleException(ctx, args)
		if err != nil {
			return false, err
		}
		if retry {
			return true, nil
		}
	}
	return false, nil
}

// makeReplayable makes sure req.GetBody can recreate the body for retries.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}

	SetBody(req, data)
	return nil
}

func rewindBody(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

// SetBody replaces the request body with data, keeping it replayable.
func SetBody(req *http.Request, data []byte) {
	req.ContentLength = int64(len(data))
	if len(data) == 0 {
		req.Body = http.NoBody
		req.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		return
	}

	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}
