package scan

import (
	"encoding/json"
	"errors"
	"fmt"
)

type EventType string

const (
	EventScan      EventType = "scan"
	EventConnected EventType = "connected"
)

var (
	ErrDecode            = errors.New("malformed event payload")
	ErrUnknownEvent      = errors.New("unknown event type")
	ErrMissingTimestamp  = errors.New("missing timestamp")
	ErrIncompleteOutcome = errors.New("scan carries neither a verified student nor an error")
)

// Event is one message on the scan stream. Events are immutable once decoded.
type Event struct {
	Type        EventType `json:"event"`
	Verified    *bool     `json:"verified,omitempty"`
	StudentID   string    `json:"student_id,omitempty"`
	StudentName string    `json:"student_name,omitempty"`
	Department  string    `json:"department,omitempty"`
	IssuedAt    string    `json:"issued_at,omitempty"`
	Error       string    `json:"error,omitempty"`
	UID         string    `json:"uid,omitempty"`
	Message     string    `json:"message,omitempty"`
	Timestamp   string    `json:"timestamp"`
}

// IsVerified reports a successful match. An absent flag counts as a failure.
func (e Event) IsVerified() bool {
	return e.Verified != nil && *e.Verified
}

// Validate enforces the closed {scan, connected} union.
func (e Event) Validate() error {
	switch e.Type {
	case EventScan, EventConnected:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
	if e.Timestamp == "" {
		return ErrMissingTimestamp
	}
	if e.Type == EventScan && !e.IsVerified() && e.Error == "" {
		return ErrIncompleteOutcome
	}
	return nil
}

// Decode parses and validates a raw stream message.
func Decode(data []byte) (Event, error) {
	const fn = "Scan:Decode"
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%s:%w:%w", fn, ErrDecode, err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, fmt.Errorf("%s:%w", fn, err)
	}
	return ev, nil
}

// Verified builds a successful scan outcome.
func Verified(studentID, name, department, issuedAt string) Event {
	ok := true
	return Event{
		Type:        EventScan,
		Verified:    &ok,
		StudentID:   studentID,
		StudentName: name,
		Department:  department,
		IssuedAt:    issuedAt,
	}
}

// Failed builds a rejected scan outcome. studentID may be empty when the card
// could not be read.
func Failed(reason, studentID string) Event {
	ok := false
	return Event{
		Type:      EventScan,
		Verified:  &ok,
		StudentID: studentID,
		Error:     reason,
	}
}

func Connected(timestamp, message string) Event {
	return Event{
		Type:      EventConnected,
		Timestamp: timestamp,
		Message:   message,
	}
}
