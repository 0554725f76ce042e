package sweep

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// slotSweepKey is the shared throttle key for the past-slot cleanup.
// Backing the throttle with redis instead of a process-local timestamp
// keeps multiple instances from sweeping in parallel.
const slotSweepKey = "sweep:slots"

// SlotSweep removes past slots no live booking references. It is
// cheap enough to trigger opportunistically from availability reads,
// so the throttle bounds it to one run per interval across the whole
// deployment regardless of call frequency.
type SlotSweep struct {
	slots    SlotCleaner
	throttle Throttle
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
}

// NewSlotSweep wires a sweep that runs at most once per interval.
func NewSlotSweep(slots SlotCleaner, throttle Throttle, interval time.Duration, loc *time.Location) *SlotSweep {
	if loc == nil {
		loc = time.Local
	}
	return &SlotSweep{slots: slots, throttle: throttle, interval: interval, loc: loc, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (s *SlotSweep) WithClock(now func() time.Time) *SlotSweep {
	s.now = now
	return s
}

// Run deletes past unreferenced slots if the throttle grants a slot.
// The boolean reports whether a sweep actually ran; throttled calls
// return (0, false, nil). Slots referenced by any pending, confirmed
// or completed booking survive no matter how old they are.
func (s *SlotSweep) Run(ctx context.Context) (int64, bool, error) {
	ok, err := s.throttle.Allow(ctx, slotSweepKey, s.interval)
	if err != nil {
		// A broken throttle store must not stop cleanup entirely;
		// run anyway and accept the duplicate work.
		log.Printf("slot-sweep: throttle check failed: %v", err)
	} else if !ok {
		return 0, false, nil
	}
	n, err := s.slots.SweepUnbookedPast(ctx, s.now().In(s.loc))
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

// RedisThrottle implements Throttle on a shared redis instance using
// SET NX with a TTL: the first caller per window wins the key, every
// other caller loses until it expires.
type RedisThrottle struct {
	client *redis.Client
}

// NewRedisThrottle returns a Throttle backed by the given client.
func NewRedisThrottle(client *redis.Client) *RedisThrottle {
	return &RedisThrottle{client: client}
}

// Allow implements Throttle.
func (t *RedisThrottle) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return t.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
