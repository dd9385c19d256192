package clock

import (
	"context"
	"time"
)

// Clock abstracts wall time so retry backoff and token expiry are testable.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type System struct{}

func New() Clock { return System{} }

func (System) Now() time.Time { return time.Now().UTC() }

func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
