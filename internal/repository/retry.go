package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/metrics"
)

// retryPolicy returns the bounded backoff for one operation.
func retryPolicy(ctx context.Context, pool contract.PoolConfig) backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(pool.RetryDelay)
	if pool.RetryBackoff {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = pool.RetryDelay
		exp.MaxElapsedTime = 0
		b = exp
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(pool.MaxRetries, 0))), ctx)
}

// withRetry runs fn with a per-attempt timeout. Transient failures are retried by the
// pool policy and surface as a ConnectionError once it gives up; every other error is
// returned on the first attempt.
func (s *SQLStore) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	defer metrics.ObserveRepository(string(s.backend), op, start)

	attempts := 0
	transient := false
	operation := func() error {
		attempts++
		attemptCtx, cancel := s.attemptContext(ctx)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		transient = ctx.Err() == nil && s.dialect.isTransient(err)
		if !transient {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.RepositoryRetries.WithLabelValues(op).Inc()
		s.log.Warn().Err(err).Str("op", op).Int("attempt", attempts).Dur("wait", wait).Msg("retrying transient failure")
	}

	err := backoff.RetryNotify(operation, retryPolicy(ctx, s.pool), notify)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%s canceled: %w", op, err)
	case transient:
		return &contract.ConnectionError{Op: op, Attempts: attempts, Err: err}
	}
	return err
}

func (s *SQLStore) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.pool.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.pool.QueryTimeout)
}
