// Package audit records staff and system actions for later review.
// Recording is fire and forget: it must never block or fail the
// operation being audited, so writes happen on a separate goroutine
// and errors are only logged.
package audit

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// Recorder accepts audit events. Implementations must return
// immediately; persistence is asynchronous.
type Recorder interface {
	Record(actor, action, resourceID, details string)
}

// DBRecorder writes audit rows into the audit_log table.
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder returns a Recorder backed by the given database.
func NewDBRecorder(db *sql.DB) *DBRecorder { return &DBRecorder{db: db} }

// Record queues one audit row. The insert runs in the background with
// its own timeout; a failed insert is logged and dropped.
func (r *DBRecorder) Record(actor, action, resourceID, details string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO audit_log (actor, action, resource_id, details) VALUES (?, ?, ?, ?)`,
			actor, action, resourceID, details)
		if err != nil {
			log.Printf("audit: record %s %s failed: %v", action, resourceID, err)
		}
	}()
}

// NopRecorder discards every event. Used in tests.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(actor, action, resourceID, details string) {}
