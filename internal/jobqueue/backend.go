package jobqueue

import (
	"context"
	"time"
)

// Backend stores jobs and hands them to workers. Pop moves a job into the
// processing set of this worker and Ack removes it from there; a popped job is
// never handed out again.
type Backend interface {
	Push(ctx context.Context, job *Job) error
	Pop(ctx context.Context, queue string, wait time.Duration) (*Job, error)
	Save(ctx context.Context, job *Job) error
	Ack(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// Heartbeat marks this worker alive for ttl.
	Heartbeat(ctx context.Context, ttl time.Duration) error
	// Abandoned lists unacked jobs held by workers whose heartbeat expired.
	// Jobs held by live workers, this one included, are never returned.
	Abandoned(ctx context.Context) ([]*Job, error)
	// Retire drops the heartbeat of a worker that stopped cleanly.
	Retire(ctx context.Context) error
	Depth(ctx context.Context, queue string) (int64, error)
}
