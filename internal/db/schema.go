package db

import "nfc-kiosk/internal/scan"

type ScanEvent struct {
	ID          string `db:"id"`
	ReaderID    string `db:"reader_id"`
	UID         string `db:"uid"`
	Verified    bool   `db:"verified"`
	StudentID   string `db:"student_id"`
	StudentName string `db:"student_name"`
	Department  string `db:"department"`
	Error       string `db:"error"`
	Timestamp   string `db:"timestamp"`
	ScannedAt   int64  `db:"scanned_at"`
}

func FromRecord(rec scan.Record) ScanEvent {
	return ScanEvent{
		ID:          rec.ID,
		ReaderID:    rec.ReaderID,
		UID:         rec.UID,
		Verified:    rec.Verified,
		StudentID:   rec.StudentID,
		StudentName: rec.StudentName,
		Department:  rec.Department,
		Error:       rec.Error,
		Timestamp:   rec.Timestamp,
		ScannedAt:   rec.ScannedAt,
	}
}
