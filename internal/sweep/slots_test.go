package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	runs    int
	deleted int64
}

func (f *fakeCleaner) SweepUnbookedPast(ctx context.Context, now time.Time) (int64, error) {
	f.runs++
	return f.deleted, nil
}

type fakeThrottle struct {
	held map[string]bool
}

func (f *fakeThrottle) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func TestSlotSweepThrottles(t *testing.T) {
	cleaner := &fakeCleaner{deleted: 4}
	sw := NewSlotSweep(cleaner, &fakeThrottle{}, 5*time.Minute, time.UTC).WithClock(fixedClock)

	n, ran, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int64(4), n)

	// Second call inside the window is a no-op.
	n, ran, err = sw.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Zero(t, n)
	assert.Equal(t, 1, cleaner.runs)
}
