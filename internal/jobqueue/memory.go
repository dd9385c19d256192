package jobqueue

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps jobs in process. Jobs are lost on restart.
type MemoryBackend struct {
	mu         sync.Mutex
	jobs       map[string]Job
	pending    map[string][]string
	processing map[string]struct{}
	signals    map[string]chan struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		jobs:       map[string]Job{},
		pending:    map[string][]string{},
		processing: map[string]struct{}{},
		signals:    map[string]chan struct{}{},
	}
}

func (b *MemoryBackend) Push(_ context.Context, job *Job) error {
	b.mu.Lock()
	b.jobs[job.ID] = *job
	b.pending[job.Queue] = append(b.pending[job.Queue], job.ID)
	signal := b.signal(job.Queue)
	b.mu.Unlock()

	select {
	case signal <- struct{}{}:
	default:
	}
	return nil
}

func (b *MemoryBackend) Pop(ctx context.Context, queue string, wait time.Duration) (*Job, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if ids := b.pending[queue]; len(ids) > 0 {
			id := ids[0]
			b.pending[queue] = ids[1:]
			b.processing[id] = struct{}{}
			job := b.jobs[id]
			b.mu.Unlock()
			return &job, nil
		}
		signal := b.signal(queue)
		b.mu.Unlock()

		select {
		case <-signal:
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (b *MemoryBackend) Save(_ context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[job.ID] = *job
	return nil
}

func (b *MemoryBackend) Ack(_ context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.processing, job.ID)
	return nil
}

func (b *MemoryBackend) Get(_ context.Context, id string) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (b *MemoryBackend) Heartbeat(context.Context, time.Duration) error { return nil }

// Abandoned is always empty: the processing set lives and dies with this
// process.
func (b *MemoryBackend) Abandoned(context.Context) ([]*Job, error) { return nil, nil }

func (b *MemoryBackend) Retire(context.Context) error { return nil }

// Processing reports how many popped jobs were not acked yet.
func (b *MemoryBackend) Processing() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.processing)
}

func (b *MemoryBackend) Depth(_ context.Context, queue string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.pending[queue])), nil
}

func (b *MemoryBackend) signal(queue string) chan struct{} {
	ch, ok := b.signals[queue]
	if !ok {
		ch = make(chan struct{}, 1)
		b.signals[queue] = ch
	}
	return ch
}
