/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package regulator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/retry"

	"github.com/acronis/go-regulator/internal/gate"
	"github.com/acronis/go-regulator/internal/throttle"
)

// Func is an operation that can be executed under regulation.
type Func func(ctx context.Context) error

// Opts represents options for the Regulator.
type Opts struct {
	// Logger is used for logging.
	// When it's necessary to use context-specific logger, LoggerProvider should be used instead.
	Logger log.FieldLogger

	// LoggerProvider is a function that provides a context-specific logger.
	// One of the typical use cases is to use a regulator in the context of a request handler,
	// where the logger should produce logs with request-specific information (e.g., request ID).
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// Metrics is a collector of the metrics about regulated calls.
	// By default, metrics collecting is disabled (see PrometheusMetrics to enable it).
	Metrics MetricsCollector

	// BackoffPolicy is used for computing wait time between retried attempts.
	// By default, DefaultBackoffPolicy is used.
	BackoffPolicy retry.Policy

	// OnRetryAttempt is called each time a retry of a failed attempt is scheduled.
	// By default, scheduled retries are logged on the warn level.
	OnRetryAttempt RetryAttemptFn
}

// ServiceState holds the concurrency gate and the rate throttle of one configured
// service together with the configuration they were built from.
// It is never mutated: configuring a service again installs a whole new state,
// and calls admitted under the old state finish under the old rules.
type ServiceState struct {
	cfg    ServiceConfig
	gate   *gate.Gate
	waiter *throttle.Waiter
}

// Config returns the configuration the service state was built from.
func (s *ServiceState) Config() ServiceConfig {
	return s.cfg
}

// PendingCount returns the number of calls that are queued at the service's
// concurrency gate or are executing right now.
func (s *ServiceState) PendingCount() int {
	return s.gate.PendingCount()
}

// Regulator regulates calls to named services.
// For each configured service it bounds how many calls execute at the same time,
// delays operation starts so that their rate stays within the configured limit,
// and retries failed operations with a backoff between attempts.
type Regulator struct {
	mu       sync.RWMutex
	services map[string]*ServiceState

	logger         log.FieldLogger
	loggerProvider func(ctx context.Context) log.FieldLogger
	metrics        MetricsCollector
	backoffPolicy  retry.Policy
	onRetryAttempt RetryAttemptFn
}

// New creates a new Regulator with the given services configured.
// Each entry of services is equivalent to a Configure call.
func New(services map[string]ServiceConfig) (*Regulator, error) {
	return NewWithOpts(services, Opts{})
}

// MustNew is a version of New that panics on error.
func MustNew(services map[string]ServiceConfig) *Regulator {
	r, err := New(services)
	if err != nil {
		panic(err)
	}
	return r
}

// NewWithOpts creates a new Regulator with the given services configured and with the specified options.
func NewWithOpts(services map[string]ServiceConfig, opts Opts) (*Regulator, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = disabledMetricsCollector
	}
	if opts.BackoffPolicy == nil {
		opts.BackoffPolicy = DefaultBackoffPolicy
	}
	r := &Regulator{
		services:       make(map[string]*ServiceState, len(services)),
		logger:         opts.Logger,
		loggerProvider: opts.LoggerProvider,
		metrics:        opts.Metrics,
		backoffPolicy:  opts.BackoffPolicy,
		onRetryAttempt: opts.OnRetryAttempt,
	}
	if r.onRetryAttempt == nil {
		r.onRetryAttempt = r.logRetryAttempt
	}
	for id, cfg := range services {
		if err := r.Configure(id, cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewWithOpts is a version of NewWithOpts that panics on error.
func MustNewWithOpts(services map[string]ServiceConfig, opts Opts) *Regulator {
	r, err := NewWithOpts(services, opts)
	if err != nil {
		panic(err)
	}
	return r
}

// NewFromConfig creates a new Regulator from the loaded configuration.
// When opts doesn't specify a backoff policy, the policy is built
// from the Backoff section of the configuration.
func NewFromConfig(cfg *Config, opts Opts) (*Regulator, error) {
	if opts.BackoffPolicy == nil {
		opts.BackoffPolicy = cfg.Backoff.Policy()
	}
	return NewWithOpts(cfg.Services, opts)
}

// MustNewFromConfig is a version of NewFromConfig that panics on error.
func MustNewFromConfig(cfg *Config, opts Opts) *Regulator {
	r, err := NewFromConfig(cfg, opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Configure validates cfg and associates a fresh concurrency gate and rate throttle
// with the service id, replacing any prior association.
// Replacement doesn't disturb in-flight calls: calls admitted under the replaced
// state finish under its rules, while new calls observe the new configuration.
// ServiceConfigError is returned if cfg is invalid, and in this case
// the prior association (if any) is kept untouched.
func (r *Regulator) Configure(id string, cfg ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return &ServiceConfigError{Service: id, Inner: err}
	}
	state, err := r.newServiceState(id, cfg)
	if err != nil {
		return &ServiceConfigError{Service: id, Inner: err}
	}
	r.mu.Lock()
	r.services[id] = state
	r.mu.Unlock()
	return nil
}

// Reconfigure is a version of Configure that fails with ServiceNotConfiguredError
// if the service has never been configured.
// It updates existing services only, so a typo in the service id cannot
// silently create a new entry.
func (r *Regulator) Reconfigure(id string, cfg ServiceConfig) error {
	r.mu.RLock()
	_, ok := r.services[id]
	r.mu.RUnlock()
	if !ok {
		return &ServiceNotConfiguredError{Service: id}
	}
	return r.Configure(id, cfg)
}

// Lookup returns the current state of the service,
// or ServiceNotConfiguredError if the service is not configured.
func (r *Regulator) Lookup(id string) (*ServiceState, error) {
	r.mu.RLock()
	state, ok := r.services[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &ServiceNotConfiguredError{Service: id}
	}
	return state, nil
}

// PendingCount returns the number of calls that are queued at the service's
// concurrency gate or are executing right now, or 0 if the service is not configured.
func (r *Regulator) PendingCount(id string) int {
	state, err := r.Lookup(id)
	if err != nil {
		return 0
	}
	return state.PendingCount()
}

// Services returns the sorted identifiers of all configured services.
func (r *Regulator) Services() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Do executes fn regulated by the named service.
// The call passes the service's concurrency gate first and keeps the gate slot
// until it finishes, then each attempt (retries included) waits for the service's
// throttle to grant a start. Failed attempts are retried according to the service's
// configuration, and the error of the last attempt is returned as is.
// If the service is not configured, ServiceNotConfiguredError is returned
// right away, before any queueing.
// Waiting at the gate and the throttle is interrupted by ctx cancellation.
func (r *Regulator) Do(ctx context.Context, id string, fn Func) error {
	start := time.Now()

	state, err := r.Lookup(id)
	if err != nil {
		r.metrics.ObserveCall(id, CallStatusNotConfigured, time.Since(start))
		return err
	}

	r.metrics.IncPendingCalls(id)
	defer r.metrics.DecPendingCalls(id)

	if err = state.gate.Acquire(ctx); err != nil {
		r.metrics.ObserveCall(id, CallStatusCanceled, time.Since(start))
		return err
	}
	defer state.gate.Release()

	err = r.executeWithRetries(ctx, id, state, fn)
	r.metrics.ObserveCall(id, callStatus(err), time.Since(start))
	return err
}

// Wrap binds fn to the named service and returns a function that executes it with Do.
// The service is resolved on each invocation of the returned function,
// so wrapping doesn't require the service to be configured yet,
// and later reconfiguration is picked up automatically.
func (r *Regulator) Wrap(id string, fn Func) Func {
	return func(ctx context.Context) error {
		return r.Do(ctx, id, fn)
	}
}

// DoWithResult is a version of Regulator.Do for operations returning a result along with an error.
func DoWithResult[T any](ctx context.Context, r *Regulator, id string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, id, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}

func (r *Regulator) newServiceState(id string, cfg ServiceConfig) (*ServiceState, error) {
	g, err := gate.New(cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	limiter, err := newThrottleLimiter(cfg)
	if err != nil {
		return nil, err
	}
	onDelay := func(time.Duration) {
		r.metrics.IncThrottleDelays(id)
	}
	return &ServiceState{cfg: cfg, gate: g, waiter: throttle.NewWaiter(limiter, onDelay)}, nil
}

func newThrottleLimiter(cfg ServiceConfig) (throttle.Limiter, error) {
	maxRate := throttle.Rate{Count: cfg.Rate.Count, Interval: cfg.Rate.Interval}
	switch cfg.Alg {
	case ThrottleAlgLeakyBucket:
		return throttle.NewLeakyBucketLimiter(maxRate, cfg.Burst)
	case ThrottleAlgSlidingWindow:
		return throttle.NewSlidingWindowLimiter(maxRate), nil
	case ThrottleAlgTokenBucket:
		return throttle.NewTokenBucketLimiter(maxRate, cfg.Burst), nil
	default:
		return throttle.NewSlidingLogLimiter(maxRate)
	}
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return CallStatusOK
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return CallStatusCanceled
	default:
		return CallStatusError
	}
}
