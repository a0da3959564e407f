package oauth2

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"api-client/internal/common/errors"
	"api-client/internal/common/logging"
	"api-client/internal/common/utils"
	"api-client/internal/common/validation"
	"api-client/internal/locks"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
)

// RefresherConfig configures proactive token refresh
type RefresherConfig struct {
	// Schedule is a standard cron expression or descriptor such as "@every 1m".
	Schedule string `json:"schedule" validate:"required,cron_expression"`
	// Lookahead refreshes tokens that expire within this window.
	Lookahead time.Duration `json:"lookahead" validate:"gt=0"`
	// LockTTL bounds how long a crashed instance can hold a user's refresh lock.
	LockTTL time.Duration `json:"lock_ttl" validate:"gt=0"`
	// Retry applies to transport failures only.
	Retry utils.RetryConfig `json:"-"`
}

// DefaultRefresherConfig checks every minute for tokens expiring within five minutes
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		Schedule:  "@every 1m",
		Lookahead: 5 * time.Minute,
		LockTTL:   30 * time.Second,
		Retry:     utils.DefaultRetryConfig(),
	}
}

// Refresher refreshes the stored tokens of registered users before they
// expire, so that interactive requests rarely wait on the token endpoint.
// The per-user lock keeps several instances sharing a store from refreshing
// the same token at once.
type Refresher struct {
	flow   *AuthorizationCodeFlow
	locker locks.Locker
	config RefresherConfig
	logger logging.Logger

	mu    sync.Mutex
	users map[string]struct{}
	cron  *cron.Cron
}

// NewRefresher creates a refresher. The flow must have a data store.
func NewRefresher(flow *AuthorizationCodeFlow, locker locks.Locker, config RefresherConfig) (*Refresher, error) {
	if flow == nil || flow.DataStore() == nil {
		return nil, errors.ConfigError("refresher requires a flow with a data store")
	}
	if err := validation.ValidateStruct(config); err != nil {
		return nil, configError(err)
	}
	if locker == nil {
		locker = locks.NewLocalLocker()
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = utils.DefaultRetryConfig()
	}
	config.Retry.RetryableErrors = func(err error) bool {
		return errors.IsType(err, errors.ErrTypeConnection)
	}

	return &Refresher{
		flow:   flow,
		locker: locker,
		config: config,
		logger: flow.logger.WithFields(logging.String("component", "token_refresher")),
		users:  make(map[string]struct{}),
	}, nil
}

// Register adds userID to the refreshed users
func (r *Refresher) Register(userID string) {
	r.mu.Lock()
	r.users[userID] = struct{}{}
	r.mu.Unlock()
}

// Unregister stops refreshing userID
func (r *Refresher) Unregister(userID string) {
	r.mu.Lock()
	delete(r.users, userID)
	r.mu.Unlock()
}

// Users returns the registered users in sorted order
func (r *Refresher) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := lo.Keys(r.users)
	sort.Strings(users)
	return users
}

// Start runs RefreshDue on the configured schedule until Stop
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return errors.ValidationError("refresher already started")
	}

	c := cron.New()
	_, err := c.AddFunc(r.config.Schedule, func() {
		if _, err := r.RefreshDue(ctx); err != nil {
			r.logger.Error("Scheduled token refresh failed", err)
		}
	})
	if err != nil {
		return errors.ConfigError("invalid refresh schedule: " + err.Error())
	}

	c.Start()
	r.cron = c
	r.logger.Info("Token refresher started", logging.String("schedule", r.config.Schedule))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	r.logger.Info("Token refresher stopped")
}

// RefreshDue refreshes every registered user whose token expires within the
// lookahead window and returns how many were refreshed. Users are processed
// one at a time; a failure does not stop the others.
func (r *Refresher) RefreshDue(ctx context.Context) (int, error) {
	var (
		refreshed int
		errs      []error
	)

	for _, userID := range r.Users() {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}

		ok, err := r.refreshUser(ctx, userID)
		if err != nil {
			r.logger.Warn("Proactive refresh failed", logging.String("user_id", userID), logging.Err(err))
			errs = append(errs, err)
			continue
		}
		if ok {
			refreshed++
		}
	}

	return refreshed, stderrors.Join(errs...)
}

func (r *Refresher) refreshUser(ctx context.Context, userID string) (bool, error) {
	lock, err := r.locker.AcquireLock(ctx, "oauth2:refresh:"+userID, r.config.LockTTL)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			r.logger.Warn("Failed to release refresh lock", logging.String("user_id", userID), logging.Err(err))
		}
	}()

	// Read under the lock; another instance may have refreshed already.
	token, err := r.flow.LoadToken(ctx, userID)
	if err != nil {
		return false, err
	}
	if !r.isDue(token) {
		return false, nil
	}

	err = utils.RetryWithBackoff(ctx, r.config.Retry, func(ctx context.Context) error {
		_, err := r.flow.RefreshToken(ctx, userID, token.RefreshToken)
		return err
	})
	if err != nil {
		return false, err
	}

	r.logger.Info("Token proactively refreshed", logging.String("user_id", userID))
	return true, nil
}

func (r *Refresher) isDue(token *TokenResponse) bool {
	if token == nil || token.RefreshToken == "" {
		return false
	}
	expiresAt, ok := token.ExpiresAt()
	if !ok {
		return true
	}
	return !r.flow.Clock().Now().Add(r.config.Lookahead).Before(expiresAt)
}
