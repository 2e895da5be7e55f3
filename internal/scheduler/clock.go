package scheduler

import (
	"context"
	"time"
)

// Clock abstracts time so tests can simulate a trading day without real
// waits. Sleep returns early with the context's error on cancellation.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the production clock
type RealClock struct{}

// Now returns the current wall-clock time
func (RealClock) Now() time.Time {
	return time.Now()
}

// Sleep blocks for d or until the context is cancelled
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
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
