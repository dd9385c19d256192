package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockKeyEmpty   = errors.New("lock key is empty")
	ErrLockTTLInvalid = errors.New("lock ttl must be positive")
)

// Locker is a best-effort mutual exclusion across workers. Without redis it
// only excludes goroutines of the current process.
type Locker struct {
	client *redis.Client
	script *redis.Script

	mu    sync.Mutex
	local map[string]localLock
}

type localLock struct {
	token   string
	expires time.Time
}

func NewLocker(client *redis.Client) *Locker {
	l := &Locker{local: map[string]localLock{}}
	if client != nil {
		l.client = client
		l.script = redis.NewScript(lockReleaseScript)
	}
	return l
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, ErrLockKeyEmpty
	}
	if ttl <= 0 {
		return "", false, ErrLockTTLInvalid
	}

	token := uuid.NewString()
	if l.client == nil {
		return token, l.tryLocal(key, token, ttl), nil
	}

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	if l.client == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.local[key]; ok && held.token == token {
			delete(l.local, key)
		}
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

func (l *Locker) tryLocal(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if held, ok := l.local[key]; ok && now.Before(held.expires) {
		return false
	}
	l.local[key] = localLock{token: token, expires: now.Add(ttl)}
	return true
}
