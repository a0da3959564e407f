// Package services is the generic REST request pipeline: a BaseClientService
// describes one API (where it lives, how bodies are encoded, which HTTP
// client carries its calls) and Request[T] executes typed calls against it.
package services

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"api-client/internal/circuitbreaker"
	"api-client/internal/common/cache"
	"api-client/internal/common/errors"
	commonhttp "api-client/internal/common/http"
	"api-client/internal/common/logging"
	"api-client/internal/common/ratelimit"
	"api-client/internal/common/validation"
)

// FeatureLegacyDataResponse marks APIs that wrap bodies in {"data": ...}
const FeatureLegacyDataResponse = "dataWrapper"

// ServiceMetadata describes an API, normally as read from its discovery document
type ServiceMetadata struct {
	Name     string   `json:"name" validate:"required"`
	BaseURI  string   `json:"base_uri" validate:"required,absolute_url"`
	BasePath string   `json:"base_path"`
	Features []string `json:"features,omitempty"`
}

// ETagged is implemented by response types that record the entity tag of
// the response they were decoded from.
type ETagged interface {
	SetETag(etag string)
}

// Initializer configures a BaseClientService. Start from NewInitializer.
type Initializer struct {
	HTTPClientFactory commonhttp.HTTPClientFactory
	// HTTPClientInitializer typically is a credential that signs requests.
	HTTPClientInitializer commonhttp.HTTPClientInitializer

	GZipEnabled     bool
	ApplicationName string
	Serializer      Serializer
	// MaxURLLength above which GET requests are sent as POST. 0 disables the rewrite.
	MaxURLLength  int
	BackOffPolicy commonhttp.ExponentialBackOffPolicy

	RateLimiter    ratelimit.Limiter
	CircuitBreaker *circuitbreaker.GoBreakerAdapter

	// ResponseCache, when set, keeps GET responses that carry an ETag and
	// revalidates them with If-None-Match.
	ResponseCache    cache.Cache
	ResponseCacheTTL time.Duration

	Logger logging.Logger
}

// NewInitializer returns the defaults: gzip on, JSON bodies, 2048 character
// GET URLs and backoff on 5xx responses.
func NewInitializer() Initializer {
	return Initializer{
		GZipEnabled:   true,
		Serializer:    JSONSerializer{},
		MaxURLLength:  commonhttp.DefaultMaxURLLength,
		BackOffPolicy: commonhttp.DefaultBackOffPolicy,
	}
}

// BaseClientService is the shared part of every API client
type BaseClientService struct {
	metadata        ServiceMetadata
	features        map[string]bool
	serializer      Serializer
	httpClient      *commonhttp.ConfigurableHTTPClient
	clientInit      commonhttp.HTTPClientInitializer
	gzipEnabled     bool
	applicationName string
	breaker         *circuitbreaker.GoBreakerAdapter
	logger          logging.Logger

	responseCache    cache.Cache
	responseCacheTTL time.Duration
}

// NewBaseClientService validates metadata and builds the service's HTTP
// client. The client initializer is applied by the factory, so its
// interceptors run before the URL length interceptor and the rate limiter.
func NewBaseClientService(metadata ServiceMetadata, init Initializer) (*BaseClientService, error) {
	if err := validation.ValidateStruct(metadata); err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, errors.ConfigError("invalid service metadata: " + appErr.Message)
		}
		return nil, errors.ConfigError("invalid service metadata: " + err.Error())
	}

	logger := init.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("service", metadata.Name))

	serializer := init.Serializer
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	factory := init.HTTPClientFactory
	if factory == nil {
		factory = commonhttp.NewDefaultHTTPClientFactory()
	}

	var initializers []commonhttp.HTTPClientInitializer
	if init.HTTPClientInitializer != nil {
		initializers = append(initializers, init.HTTPClientInitializer)
	}
	client := factory.CreateHTTPClient(commonhttp.CreateHTTPClientArgs{
		GZipEnabled:     init.GZipEnabled,
		ApplicationName: init.ApplicationName,
		BackOffPolicy:   init.BackOffPolicy,
		Initializers:    initializers,
		Logger:          logger,
	})
	// The length check must see the URL after the initializer's interceptors
	// (an access_token query parameter) have run.
	if init.MaxURLLength > 0 {
		client.AddInterceptor(commonhttp.NewMaxURLLengthInterceptor(init.MaxURLLength))
	}
	if init.RateLimiter != nil {
		client.AddInterceptor(commonhttp.NewRateLimitInterceptor(init.RateLimiter))
	}

	features := make(map[string]bool, len(metadata.Features))
	for _, feature := range metadata.Features {
		features[feature] = true
	}
	metadata.Features = append([]string(nil), metadata.Features...)

	return &BaseClientService{
		metadata:        metadata,
		features:        features,
		serializer:      serializer,
		httpClient:      client,
		clientInit:      init.HTTPClientInitializer,
		gzipEnabled:     init.GZipEnabled,
		applicationName: init.ApplicationName,
		breaker:         init.CircuitBreaker,
		logger:          logger,

		responseCache:    init.ResponseCache,
		responseCacheTTL: init.ResponseCacheTTL,
	}, nil
}

func (s *BaseClientService) Name() string     { return s.metadata.Name }
func (s *BaseClientService) BaseURI() string  { return s.metadata.BaseURI }
func (s *BaseClientService) BasePath() string { return s.metadata.BasePath }

// Features returns a copy of the service features
func (s *BaseClientService) Features() []string {
	return append([]string(nil), s.metadata.Features...)
}

func (s *BaseClientService) HasFeature(feature string) bool { return s.features[feature] }

func (s *BaseClientService) Serializer() Serializer { return s.serializer }

func (s *BaseClientService) HTTPClient() *commonhttp.ConfigurableHTTPClient { return s.httpClient }

func (s *BaseClientService) HTTPClientInitializer() commonhttp.HTTPClientInitializer {
	return s.clientInit
}

func (s *BaseClientService) GZipEnabled() bool { return s.gzipEnabled }

func (s *BaseClientService) ApplicationName() string { return s.applicationName }

// SerializeObject encodes a request body, wrapped in {"data": ...} when the
// service has the legacy data feature.
func (s *BaseClientService) SerializeObject(v interface{}) (string, error) {
	if s.HasFeature(FeatureLegacyDataResponse) {
		v = wrappedData{Data: v}
	}
	data, err := s.serializer.Serialize(v)
	if err != nil {
		return "", errors.InternalError("failed to serialize request body", err)
	}
	return string(data), nil
}

// DeserializeResponse decodes a successful response into target and closes
// the body. A *string target receives the body verbatim; an ETagged target
// also receives the ETag header. A body carrying a
// top-level error object fails with a request error even on 2xx.
func (s *BaseClientService) DeserializeResponse(resp *http.Response, target interface{}) error {
	body, err := readBody(resp)
	if err != nil {
		return err
	}

	if raw, ok := target.(*string); ok {
		*raw = string(body)
		return nil
	}

	if reqErr := s.sniffError(body); reqErr != nil {
		return errors.RequestError(fmt.Sprintf("%s: %s", s.Name(), reqErr.Message), reqErr).
			WithContext("status_code", resp.StatusCode)
	}

	if s.HasFeature(FeatureLegacyDataResponse) {
		var envelope dataEnvelope
		if err := s.serializer.Deserialize(body, &envelope); err != nil {
			return errors.DeserializationError("failed to decode response envelope", err)
		}
		if len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
			return errors.DeserializationError("response is missing its data wrapper", nil)
		}
		body = envelope.Data
	}

	if err := s.serializer.Deserialize(body, target); err != nil {
		return errors.DeserializationError("failed to decode response", err)
	}
	if tagged, ok := target.(ETagged); ok {
		if etag := resp.Header.Get("ETag"); etag != "" {
			tagged.SetETag(etag)
		}
	}
	return nil
}

// DeserializeError decodes the {"error": ...} body of a failed response and
// closes the body.
func (s *BaseClientService) DeserializeError(resp *http.Response) (*RequestError, error) {
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var envelope errorEnvelope
	if err := s.serializer.Deserialize(body, &envelope); err != nil {
		return nil, errors.DeserializationError("failed to decode error response", err)
	}
	if envelope.Error == nil {
		return nil, errors.DeserializationError("error response has no error object", nil)
	}
	return envelope.Error, nil
}

// sniffError reports a top-level error object, ignoring bodies of any other shape
func (s *BaseClientService) sniffError(body []byte) *RequestError {
	var envelope errorEnvelope
	if err := s.serializer.Deserialize(body, &envelope); err != nil {
		return nil
	}
	return envelope.Error
}

// responseError turns a non-2xx response into an error. A 401 that survived
// the credential's retry is an authentication error.
func (s *BaseClientService) responseError(resp *http.Response) error {
	reqErr, err := s.DeserializeError(resp)
	if err != nil {
		reqErr = &RequestError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		authErr := errors.AuthError(fmt.Sprintf("%s: request unauthorized", s.Name()))
		authErr.Cause = reqErr
		return authErr.WithContext("status_code", resp.StatusCode)
	}

	appErr := errors.RequestError(fmt.Sprintf("%s: %s", s.Name(), reqErr.Message), reqErr).
		WithContext("status_code", resp.StatusCode)
	if reason := reqErr.Reason(); reason != "" {
		appErr = appErr.WithCode(reason)
	}
	return appErr
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectionError("failed to read response body", err)
	}
	return body, nil
}
