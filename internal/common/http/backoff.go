package http

import (
	"context"
	"net/http"
	"time"

	"api-client/internal/common/logging"
	"api-client/internal/common/utils"
)

// ExponentialBackOffPolicy selects which failures the default backoff handler retries
type ExponentialBackOffPolicy int

const (
	// BackOffNone disables the backoff handler
	BackOffNone ExponentialBackOffPolicy = 0
	// BackOffException retries transport failures
	BackOffException ExponentialBackOffPolicy = 1 << iota
	// BackOffUnsuccessfulResponse5xx retries 5xx responses
	BackOffUnsuccessfulResponse5xx
)

// DefaultBackOffPolicy is used by services and flows unless overridden
const DefaultBackOffPolicy = BackOffUnsuccessfulResponse5xx

// Has reports whether p includes flag
func (p ExponentialBackOffPolicy) Has(flag ExponentialBackOffPolicy) bool {
	return p&flag != 0
}

// BackOffConfig configures a BackOffHandler
type BackOffConfig struct {
	Retry utils.RetryConfig
	// MaxWait is the longest single delay the handler will sleep; a longer
	// computed delay ends the retries.
	MaxWait time.Duration

	ShouldRetryResponse  func(resp *http.Response) bool
	ShouldRetryException func(err error) bool

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackOffConfig retries 5xx responses and every transport error,
// starting at 250ms and doubling up to 16s.
func DefaultBackOffConfig() BackOffConfig {
	return BackOffConfig{
		Retry: utils.RetryConfig{
			InitialDelay:  250 * time.Millisecond,
			MaxDelay:      16 * time.Second,
			BackoffFactor: 2.0,
			JitterFactor:  0.1,
		},
		MaxWait: 16 * time.Second,
		ShouldRetryResponse: func(resp *http.Response) bool {
			return resp.StatusCode >= 500
		},
		ShouldRetryException: func(err error) bool {
			return true
		},
		Sleep: utils.Sleep,
	}
}

// BackOffHandler waits with exponential backoff before letting the pipeline
// retry a 5xx response or a transport failure.
type BackOffHandler struct {
	config BackOffConfig
	logger logging.Logger
}

// NewBackOffHandler creates a backoff handler; unset config fields take defaults.
func NewBackOffHandler(config BackOffConfig, logger logging.Logger) *BackOffHandler {
	defaults := DefaultBackOffConfig()
	if config.Retry.InitialDelay <= 0 {
		config.Retry = defaults.Retry
	}
	if config.MaxWait <= 0 {
		config.MaxWait = defaults.MaxWait
	}
	if config.ShouldRetryResponse == nil {
		config.ShouldRetryResponse = defaults.ShouldRetryResponse
	}
	if config.ShouldRetryException == nil {
		config.ShouldRetryException = defaults.ShouldRetryException
	}
	if config.Sleep == nil {
		config.Sleep = defaults.Sleep
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &BackOffHandler{config: config, logger: logger}
}

// HandleResponse implements UnsuccessfulResponseHandler
func (h *BackOffHandler) HandleResponse(ctx context.Context, args *UnsuccessfulResponseArgs) (bool, error) {
	if !args.SupportsRetry() || !h.config.ShouldRetryResponse(args.Response) {
		return false, nil
	}
	return h.wait(ctx, args.CurrentFailedTry)
}

// HandleException implements ExceptionHandler
func (h *BackOffHandler) HandleException(ctx context.Context, args *ExceptionArgs) (bool, error) {
	if args.CurrentFailedTry >= args.TotalTries || !h.config.ShouldRetryException(args.Err) {
		return false, nil
	}
	return h.wait(ctx, args.CurrentFailedTry)
}

func (h *BackOffHandler) wait(ctx context.Context, failedTry int) (bool, error) {
	delay := h.config.Retry.BackoffDelay(failedTry)
	if delay > h.config.MaxWait {
		return false, nil
	}

	h.logger.Debug("Backing off before retry",
		logging.Int("failed_try", failedTry),
		logging.Duration("delay", delay),
	)

	if err := h.config.Sleep(ctx, delay); err != nil {
		return false, err
	}
	return true, nil
}
