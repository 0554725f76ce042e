package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/storage"
)

type fakeObjectStore struct {
	deleted  []string
	failRefs map[string]bool
}

func (f *fakeObjectStore) Upload(ctx context.Context, data []byte, folder, filename string) (storage.StoredObject, error) {
	return storage.StoredObject{}, errors.New("not used")
}

func (f *fakeObjectStore) Delete(ctx context.Context, ref string) error {
	if f.failRefs[ref] {
		return errors.New("remote delete failed")
	}
	f.deleted = append(f.deleted, ref)
	return nil
}

// retentionSource applies the completed-before cutoff the SQL query
// would, so the 29/31 day boundary is exercised end to end.
type retentionSource struct {
	fakeSource
	completedAt map[string]time.Time
}

func (f *retentionSource) CompletedWithPhotosBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	for id, at := range f.completedAt {
		if at.Before(cutoff) && len(f.photos[id]) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func TestRetentionBoundary(t *testing.T) {
	src := &retentionSource{
		completedAt: map[string]time.Time{
			"fresh": sweepNow.Add(-29 * 24 * time.Hour),
			"stale": sweepNow.Add(-31 * 24 * time.Hour),
		},
	}
	src.photos = map[string][]model.BookingPhoto{
		"fresh": {
			{ID: 1, BookingID: "fresh", Category: model.PhotoCategoryInspiration, ObjectRef: "photos/f1"},
		},
		"stale": {
			{ID: 2, BookingID: "stale", Category: model.PhotoCategoryInspiration, ObjectRef: "photos/s1"},
			{ID: 3, BookingID: "stale", Category: model.PhotoCategoryCurrentState, ObjectRef: "photos/s2"},
		},
	}
	store := &fakeObjectStore{}
	sw := NewRetentionSweep(src, store, 30*24*time.Hour).WithClock(fixedClock)

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 2, sum.Deleted)
	assert.ElementsMatch(t, []string{"photos/s1", "photos/s2"}, store.deleted)
	assert.ElementsMatch(t, []uint64{2, 3}, src.deletedID)
	assert.Len(t, src.photos["fresh"], 1, "booking inside the window keeps its photos")
	assert.Empty(t, src.photos["stale"])
}

func TestRetentionDeleteFailureIsIsolated(t *testing.T) {
	src := &retentionSource{
		completedAt: map[string]time.Time{"stale": sweepNow.Add(-60 * 24 * time.Hour)},
	}
	src.photos = map[string][]model.BookingPhoto{
		"stale": {
			{ID: 1, BookingID: "stale", ObjectRef: "photos/bad"},
			{ID: 2, BookingID: "stale", ObjectRef: "photos/good"},
		},
	}
	store := &fakeObjectStore{failRefs: map[string]bool{"photos/bad": true}}
	sw := NewRetentionSweep(src, store, 30*24*time.Hour).WithClock(fixedClock)

	sum, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Deleted)
	assert.Equal(t, []string{"photos/good"}, store.deleted)
	// The failed photo's row survives so the next pass retries it.
	require.Len(t, src.photos["stale"], 1)
	assert.Equal(t, "photos/bad", src.photos["stale"][0].ObjectRef)
}
