package db

import (
	"context"
	"errors"
	"fmt"

	"nfc-kiosk/internal/scan"

	"github.com/georgysavva/scany/pgxscan"
)

var (
	ErrInsertFailed           = errors.New("insert operation failed")
	ErrTransactionStartFailed = errors.New("transaction start failed")
	ErrSelectFailed           = errors.New("select operation failed")
)

// CreateTimeline inserts the events in one transaction. Replayed records
// are ignored by id.
func (db *DB) CreateTimeline(ctx context.Context, events []ScanEvent) (err error) {
	const fn = "DB:CreateTimeline"
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrTransactionStartFailed, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	for _, event := range events {
		_, err = tx.Exec(ctx, `
			INSERT INTO scan_events (
				id,
				reader_id,
				uid,
				verified,
				student_id,
				student_name,
				department,
				error,
				timestamp,
				scanned_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`, event.ID, event.ReaderID, event.UID, event.Verified, event.StudentID,
			event.StudentName, event.Department, event.Error, event.Timestamp, event.ScannedAt)
		if err != nil {
			return fmt.Errorf("%s:%w:%w", fn, ErrInsertFailed, err)
		}
	}
	return nil
}

// Save records a single scan. It makes the store usable as a scan sink when
// no broker is configured.
func (db *DB) Save(ctx context.Context, rec scan.Record) error {
	return db.CreateTimeline(ctx, []ScanEvent{FromRecord(rec)})
}

// LoadScansBetween returns the scans of one card with start <= scanned_at <= end
// (unix millis), oldest first.
func (db *DB) LoadScansBetween(ctx context.Context, uid string, start, end int64) ([]ScanEvent, error) {
	const fn = "DB:LoadScansBetween"
	events := []ScanEvent{}
	err := pgxscan.Select(ctx, db.pool, &events, `
			SELECT
				id,
				reader_id,
				uid,
				verified,
				student_id,
				student_name,
				department,
				error,
				timestamp,
				scanned_at
			FROM scan_events
			WHERE uid = $1
			AND scanned_at >= $2
			AND scanned_at <= $3
			ORDER BY scanned_at ASC
		`, uid, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return events, nil
}
