package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	jobKeyPrefix        = "hmsinsure:job:"
	queueKeyPrefix      = "hmsinsure:queue:"
	processingKeyPrefix = "hmsinsure:queue:processing:"
	heartbeatKeyPrefix  = "hmsinsure:worker:"
	workersKey          = "hmsinsure:workers"
	statsKey            = "hmsinsure:job_stats"
)

// RedisBackend shares queues between processes. Each backend is one worker:
// popped jobs go to its own processing list, and its heartbeat key tells the
// other workers whether that list is still owned.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
	worker string
	log    *zap.Logger
}

func NewRedisBackend(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisBackend {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	worker := ulid.Make().String()
	return &RedisBackend{
		client: client,
		ttl:    ttl,
		worker: worker,
		log:    log.Named("jobqueue.redis").With(zap.String("worker", worker)),
	}
}

// Worker returns the id this backend pops jobs under.
func (b *RedisBackend) Worker() string { return b.worker }

func processingKey(worker string) string { return processingKeyPrefix + worker }

func heartbeatKey(worker string) string { return heartbeatKeyPrefix + worker }

func (b *RedisBackend) Push(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, b.ttl)
	pipe.LPush(ctx, queueKeyPrefix+job.Queue, job.ID)
	pipe.HIncrBy(ctx, statsKey, string(StatusQueued), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func (b *RedisBackend) Pop(ctx context.Context, queue string, wait time.Duration) (*Job, error) {
	id, err := b.client.BRPopLPush(ctx, queueKeyPrefix+queue, processingKey(b.worker), wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job, err := b.Get(ctx, id)
	if err != nil {
		// job data expired or is unreadable
		b.client.LRem(ctx, processingKey(b.worker), 1, id)
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	job.Worker = b.worker
	return job, nil
}

func (b *RedisBackend) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return b.client.Set(ctx, jobKeyPrefix+job.ID, data, b.ttl).Err()
}

func (b *RedisBackend) Ack(ctx context.Context, job *Job) error {
	worker := job.Worker
	if worker == "" {
		worker = b.worker
	}
	pipe := b.client.TxPipeline()
	pipe.LRem(ctx, processingKey(worker), 1, job.ID)
	pipe.HIncrBy(ctx, statsKey, string(job.Status), 1)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Get(ctx context.Context, id string) (*Job, error) {
	data, err := b.client.Get(ctx, jobKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (b *RedisBackend) Heartbeat(ctx context.Context, ttl time.Duration) error {
	pipe := b.client.TxPipeline()
	pipe.SAdd(ctx, workersKey, b.worker)
	pipe.Set(ctx, heartbeatKey(b.worker), time.Now().UTC().Format(time.RFC3339), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Abandoned(ctx context.Context) ([]*Job, error) {
	workers, err := b.client.SMembers(ctx, workersKey).Result()
	if err != nil {
		return nil, err
	}

	var jobs []*Job
	for _, worker := range workers {
		if worker == b.worker {
			continue
		}
		alive, err := b.client.Exists(ctx, heartbeatKey(worker)).Result()
		if err != nil {
			return nil, err
		}
		if alive > 0 {
			continue
		}

		ids, err := b.client.LRange(ctx, processingKey(worker), 0, -1).Result()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			// swept on an earlier start, or stopped without a clean retire
			b.client.SRem(ctx, workersKey, worker)
			continue
		}
		for _, id := range ids {
			job, err := b.Get(ctx, id)
			if err != nil {
				b.log.Warn("dropping unreadable job from processing list",
					zap.String("job_id", id), zap.String("owner", worker), zap.Error(err))
				b.client.LRem(ctx, processingKey(worker), 1, id)
				continue
			}
			job.Worker = worker
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (b *RedisBackend) Retire(ctx context.Context) error {
	n, err := b.client.LLen(ctx, processingKey(b.worker)).Result()
	if err != nil {
		return err
	}
	pipe := b.client.TxPipeline()
	pipe.Del(ctx, heartbeatKey(b.worker))
	if n == 0 {
		pipe.SRem(ctx, workersKey, b.worker)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Depth(ctx context.Context, queue string) (int64, error) {
	return b.client.LLen(ctx, queueKeyPrefix+queue).Result()
}
