package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRetries        = 2
	DefaultTimeoutPerAttempt = 30 * time.Second
	DefaultBackoffFactor     = 500 * time.Millisecond
)

type RetryOptions struct {
	MaxRetries        int
	TimeoutPerAttempt time.Duration
	BackoffFactor     time.Duration
}

// Retrying bounds every call of the wrapped Store with a timeout and retries transient failures
// with exponential backoff. Calls are never reordered.
type Retrying struct {
	Store
	opts RetryOptions
}

func WithRetry(s Store, opts RetryOptions) *Retrying {
	return &Retrying{Store: s, opts: opts}
}

func (r *Retrying) Get(ctx context.Context, key string) (data []byte, err error) {
	err = r.do(ctx, "get", key, func(ctx context.Context) error {
		data, err = r.Store.Get(ctx, key)
		return err
	})

	return data, err
}

func (r *Retrying) Put(ctx context.Context, key string, data []byte) error {
	return r.do(ctx, "put", key, func(ctx context.Context) error {
		return r.Store.Put(ctx, key, data)
	})
}

func (r *Retrying) List(ctx context.Context, prefix string) (keys []string, err error) {
	err = r.do(ctx, "list", prefix, func(ctx context.Context) error {
		keys, err = r.Store.List(ctx, prefix)
		return err
	})

	return keys, err
}

func (r *Retrying) attempt(parent context.Context, fn func(context.Context) error) error {
	ctx, cancel := parent, context.CancelFunc(func() {})

	if r.opts.TimeoutPerAttempt > 0 {
		ctx, cancel = context.WithTimeout(parent, r.opts.TimeoutPerAttempt)
	}

	defer cancel()

	err := fn(ctx)

	// the attempt timed out while the caller is still waiting: that's a transient failure.
	if err != nil && !errors.Is(err, ErrTransient) &&
		errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		err = fmt.Errorf("%w: %v", ErrTransient, err)
	}

	return err
}

func (r *Retrying) do(ctx context.Context, op, key string, fn func(context.Context) error) error {
	var err error

	for attempt := 0; ; attempt++ {
		err = r.attempt(ctx, fn)

		if err == nil || !IsRetryable(err) || attempt >= r.opts.MaxRetries || ctx.Err() != nil {
			return err
		}

		backoff := r.opts.BackoffFactor << int64(attempt)

		if backoff < 0 {
			backoff = DefaultBackoffFactor
		}

		log.Debug().
			Str("Op", op).
			Str("Key", key).
			Int("RetriesLeft", r.opts.MaxRetries - attempt).
			Dur("Backoff", backoff).
			Err(err).
			Msg("store: transient failure, will retry")

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
	}
}
