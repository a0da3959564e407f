package http

import (
	"api-client/internal/common/logging"
)

// HTTPClientInitializer configures a freshly created client, typically by
// registering itself as an interceptor or response handler.
type HTTPClientInitializer interface {
	Initialize(client *ConfigurableHTTPClient)
}

// CreateHTTPClientArgs holds the parameters a factory builds a client from
type CreateHTTPClientArgs struct {
	GZipEnabled     bool
	ApplicationName string
	BackOffPolicy   ExponentialBackOffPolicy
	Initializers    []HTTPClientInitializer
	Logger          logging.Logger
}

// HTTPClientFactory creates configured HTTP clients
type HTTPClientFactory interface {
	CreateHTTPClient(args CreateHTTPClientArgs) *ConfigurableHTTPClient
}

// DefaultHTTPClientFactory builds clients with NewHTTPClient
type DefaultHTTPClientFactory struct {
	Options []ClientOption
	BackOff BackOffConfig
}

// NewDefaultHTTPClientFactory creates a factory; opts apply to every client it builds.
func NewDefaultHTTPClientFactory(opts ...ClientOption) *DefaultHTTPClientFactory {
	return &DefaultHTTPClientFactory{Options: opts}
}

// CreateHTTPClient implements HTTPClientFactory
func (f *DefaultHTTPClientFactory) CreateHTTPClient(args CreateHTTPClientArgs) *ConfigurableHTTPClient {
	opts := append([]ClientOption(nil), f.Options...)
	if !args.GZipEnabled {
		opts = append(opts, WithoutCompression())
	}

	client := NewConfigurableHTTPClient(NewHTTPClient(opts...), args.Logger)

	if args.ApplicationName != "" {
		client.AddInterceptor(NewUserAgentInterceptor(args.ApplicationName, args.GZipEnabled))
	}

	if args.BackOffPolicy != BackOffNone {
		handler := NewBackOffHandler(f.BackOff, args.Logger)
		if args.BackOffPolicy.Has(BackOffUnsuccessfulResponse5xx) {
			client.AddUnsuccessfulResponseHandler(handler)
		}
		if args.BackOffPolicy.Has(BackOffException) {
			client.AddExceptionHandler(handler)
		}
	}

	for _, initializer := range args.Initializers {
		if initializer != nil {
			initializer.Initialize(client)
		}
	}

	return client
}
