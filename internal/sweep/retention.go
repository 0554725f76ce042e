package sweep

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/studio-booking/internal/storage"
)

// RetentionSweep deletes client photos from bookings completed longer
// ago than the retention age. Payment proofs are never touched; only
// the inspiration and current-state photo sets fall under retention.
// Each photo is handled independently: a failed remote delete is
// logged and counted, the row is kept so the next pass retries it.
type RetentionSweep struct {
	bookings BookingSource
	store    storage.ObjectStore
	age      time.Duration
	now      func() time.Time
}

// NewRetentionSweep wires a sweep with the given retention age
// (typically 30 days).
func NewRetentionSweep(bookings BookingSource, store storage.ObjectStore, age time.Duration) *RetentionSweep {
	return &RetentionSweep{bookings: bookings, store: store, age: age, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (s *RetentionSweep) WithClock(now func() time.Time) *RetentionSweep {
	s.now = now
	return s
}

// Run executes one retention pass and reports how many photos were
// removed. Bookings inside the retention window are untouched; a
// booking completed 29 days ago keeps everything, one completed 31
// days ago loses all client photos.
func (s *RetentionSweep) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	cutoff := s.now().UTC().Add(-s.age)

	ids, err := s.bookings.CompletedWithPhotosBefore(ctx, cutoff)
	if err != nil {
		return sum, err
	}
	for _, id := range ids {
		sum.Processed++
		photos, err := s.bookings.ListPhotos(ctx, id)
		if err != nil {
			log.Printf("retention-sweep: list photos %s failed: %v", id, err)
			sum.Failed++
			continue
		}
		for _, p := range photos {
			if err := s.store.Delete(ctx, p.ObjectRef); err != nil {
				// Keep the row so the next pass retries the object.
				log.Printf("retention-sweep: delete object %s failed: %v", p.ObjectRef, err)
				sum.Failed++
				continue
			}
			if err := s.bookings.DeletePhoto(ctx, p.ID); err != nil {
				log.Printf("retention-sweep: delete photo row %d failed: %v", p.ID, err)
				sum.Failed++
				continue
			}
			sum.Deleted++
		}
	}
	return sum, nil
}
