package scan

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotScan = errors.New("only scan events are recorded")

// Record is the archived form of a scan outcome.
type Record struct {
	ID          string `json:"id"`
	ReaderID    string `json:"reader_id"`
	UID         string `json:"uid"`
	Verified    bool   `json:"verified"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Department  string `json:"department"`
	Error       string `json:"error"`
	Timestamp   string `json:"timestamp"`
	ScannedAt   int64  `json:"scanned_at"` // unix millis
}

func NewRecord(readerID string, ev Event) (Record, error) {
	const fn = "Scan:NewRecord"
	if ev.Type != EventScan {
		return Record{}, fmt.Errorf("%s:%w", fn, ErrNotScan)
	}
	scannedAt, err := time.Parse(time.RFC3339Nano, ev.Timestamp)
	if err != nil {
		return Record{}, fmt.Errorf("%s:%w:%w", fn, ErrDecode, err)
	}
	return Record{
		ID:          uuid.NewString(),
		ReaderID:    readerID,
		UID:         ev.UID,
		Verified:    ev.IsVerified(),
		StudentID:   ev.StudentID,
		StudentName: ev.StudentName,
		Department:  ev.Department,
		Error:       ev.Error,
		Timestamp:   ev.Timestamp,
		ScannedAt:   scannedAt.UnixMilli(),
	}, nil
}
