package task

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const inProcessMaxAttempts = 3

// InProcessExecutor runs tasks on background goroutines inside the API
// process. It is the broker-less fallback for development and tests; failed
// tasks are retried with exponential backoff up to a fixed attempt count.
type InProcessExecutor struct {
	handler Handler
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewInProcessExecutor(handler Handler, logger zerolog.Logger) *InProcessExecutor {
	return &InProcessExecutor{handler: handler, logger: logger}
}

// Submit schedules the task on a new goroutine and returns immediately.
func (e *InProcessExecutor) Submit(_ context.Context, t Task) error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(context.Background(), t)
	}()
	return nil
}

// Wait blocks until all submitted tasks have finished. Used by tests and
// graceful shutdown.
func (e *InProcessExecutor) Wait() {
	e.wg.Wait()
}

func (e *InProcessExecutor) run(ctx context.Context, t Task) {
	operation := func() (struct{}, error) {
		return struct{}{}, e.handler(ctx, t)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	if _, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(inProcessMaxAttempts)); err != nil {
		e.logger.Error().Err(err).Str("kind", string(t.Kind)).Str("id", t.ID).
			Msg("task failed after retries")
	}
}
