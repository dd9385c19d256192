package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/smallbiznis/hmsinsure/pkg/telemetry/correlation"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

const DefaultQueue = "default"

// Job is one dispatch of a registered method. Jobs run at most once.
type Job struct {
	ID         string              `json:"id"`
	Method     string              `json:"method"`
	Queue      string              `json:"queue"`
	Status     Status              `json:"status"`
	Kwargs     datatypes.JSONMap   `json:"kwargs,omitempty"`
	Timeout    time.Duration       `json:"timeout"`
	Error      string              `json:"error,omitempty"`
	Carrier    correlation.Carrier `json:"carrier"`
	Worker     string              `json:"worker,omitempty"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	EndedAt    *time.Time          `json:"ended_at,omitempty"`
}

// Decode copies the job kwargs into v.
func (j Job) Decode(v any) error {
	raw, err := json.Marshal(j.Kwargs)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (j *Job) markStarted(now time.Time) {
	j.Status = StatusStarted
	j.StartedAt = &now
}

func (j *Job) markEnded(now time.Time, err error) {
	j.EndedAt = &now
	if err != nil {
		j.Status = StatusFailed
		j.Error = err.Error()
		return
	}
	j.Status = StatusFinished
}

// Request describes a job to enqueue. Zero Queue and Timeout take the
// dispatcher defaults.
type Request struct {
	Method  string
	Queue   string
	Timeout time.Duration
	Kwargs  map[string]any
}

type Handler func(ctx context.Context, job Job) error

// Enqueuer is the producer side of the dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, req Request) (*Job, error)
}

var (
	ErrUnknownMethod = errors.New("unknown_job_method")
	ErrUnknownQueue  = errors.New("unknown_job_queue")
	ErrJobNotFound   = errors.New("job_not_found")
	ErrDuplicate     = errors.New("job_method_already_registered")
)
