package task

import "context"

// Kind selects which processor a task is routed to.
type Kind string

const (
	KindProcessJob   Kind = "process_job"
	KindProcessBatch Kind = "process_batch"
)

// Task is one schedulable unit of work: process a single job or a whole
// batch. It carries only identifiers; processors reload state from the store
// so a redelivered task observes the current lifecycle.
type Task struct {
	Kind   Kind   `json:"kind"`
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// Handler processes one task to completion. A returned error signals that
// the task itself failed and may be retried by the executor; an entity being
// marked failed is a normal completed unit of work.
type Handler func(ctx context.Context, t Task) error

// Executor schedules tasks for asynchronous processing. The API and worker
// share this seam so processing can run in-process or behind a broker
// without the callers noticing.
type Executor interface {
	Submit(ctx context.Context, t Task) error
}
