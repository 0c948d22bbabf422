// Package bridge runs blocking core calls for synchronous callers such as the CLI and
// the MCP server. Each call gets a worker slot, a fresh timeout context and one result,
// and failures come back as a typed *Error.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/skysched/internal/contract"
	"github.com/huangsam/skysched/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Kind classifies a bridge error for the caller.
type Kind string

// Error kinds.
const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindConnection Kind = "connection"
	KindTimeout    Kind = "timeout"
	KindCanceled   Kind = "canceled"
	KindInternal   Kind = "internal"
)

// Error is what callers of the bridge see when a call fails.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func (e *Error) Unwrap() error { return e.Err }

// Bridge bounds how many core calls run at once.
type Bridge struct {
	slots   *semaphore.Weighted
	timeout time.Duration
}

// New returns a bridge running at most workers calls at a time, each limited to timeout.
func New(workers int, timeout time.Duration) *Bridge {
	if workers < 1 {
		workers = contract.DefaultWorkers
	}
	if timeout <= 0 {
		timeout = contract.DefaultCallTimeout
	}
	return &Bridge{slots: semaphore.NewWeighted(int64(workers)), timeout: timeout}
}

// FromConfig returns a bridge sized by the runtime configuration.
func FromConfig(cfg *contract.Config) *Bridge {
	return New(cfg.Workers, cfg.CallTimeout)
}

type result[T any] struct {
	value T
	err   error
}

// Call runs fn on a worker slot with its own timeout context and waits for it. When
// the timeout fires first the call returns a timeout error; fn sees its context
// canceled and its late result is dropped.
func Call[T any](ctx context.Context, b *Bridge, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.slots.Acquire(ctx, 1); err != nil {
		return zero, observe(Translate(err))
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	done := make(chan result[T], 1)
	go func() {
		defer b.slots.Release(1)
		v, err := fn(callCtx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return finish(r)
	case <-callCtx.Done():
		select {
		case r := <-done:
			return finish(r)
		default:
		}
		return zero, observe(Translate(callCtx.Err()))
	}
}

func finish[T any](r result[T]) (T, error) {
	if r.err != nil {
		var zero T
		return zero, observe(Translate(r.err))
	}
	metrics.BridgeCalls.WithLabelValues("ok").Inc()
	return r.value, nil
}

func observe(err *Error) error {
	metrics.BridgeCalls.WithLabelValues(string(err.Kind)).Inc()
	return err
}

// Translate maps an error from the core onto a bridge error kind.
func Translate(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	kind := KindInternal
	switch {
	case errors.Is(err, contract.ErrValidation):
		kind = KindValidation
	case errors.Is(err, contract.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, contract.ErrConflict):
		kind = KindConflict
	case errors.Is(err, contract.ErrConnection), errors.Is(err, contract.ErrTransient):
		kind = KindConnection
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}
