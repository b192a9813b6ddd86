package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries int

	// RateLimitRPS is a global limit across all callers sharing the
	// Resilient generator. Set to <=0 to disable.
	RateLimitRPS float64

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac < 0 {
		o.BackoffJitterFrac = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Resilient wraps a Generator with a shared rate limiter and retry with
// exponential backoff. Concurrent callers share the limiter but never a
// request or response value.
type Resilient struct {
	next    Generator
	limiter *rate.Limiter
	opts    Options
}

func NewResilient(next Generator, opts Options) *Resilient {
	opts = opts.withDefaults()
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return &Resilient{next: next, limiter: limiter, opts: opts}
}

func (r *Resilient) Generate(ctx context.Context, req Request) (Response, error) {
	var last Response
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return last, err
			}
		}

		resp, err := r.next.Generate(ctx, req)
		last = resp
		if err == nil && req.Validate != nil {
			if verr := req.Validate(resp.JSON); verr != nil {
				err = &LimitedTransientError{Err: verr, ExtraRetries: 1}
			}
		}
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return last, ctx.Err()
		}
		maxRetries := maxExtraRetries(r.opts.MaxRetries, err)
		if !IsTransient(err) || attempt >= maxRetries {
			return last, err
		}

		sleep := backoffSleep(r.opts.BackoffInitial, r.opts.BackoffMax, r.opts.BackoffJitterFrac, attempt)
		r.opts.Logger.Debug("retrying generation",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("backoff", sleep),
			zap.Error(err),
		)
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return last, ctx.Err()
		}
	}
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxExtraRetries(defaultRetries int, err error) int {
	if defaultRetries < 0 {
		defaultRetries = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		limited := capErr.MaxExtraRetries()
		if limited < 0 {
			limited = 0
		}
		if limited < defaultRetries {
			return limited
		}
	}
	return defaultRetries
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var lte *LimitedTransientError
	if errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
