package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Decode(t *testing.T) {
	cases := []struct {
		name          string
		input         string
		expectedErr   error
		expectedEvent func() Event
	}{
		{
			name:  "verified scan",
			input: `{"event":"scan","verified":true,"student_id":"S1","student_name":"Alice","department":"CS","timestamp":"t1"}`,
			expectedEvent: func() Event {
				ev := Verified("S1", "Alice", "CS", "")
				ev.Timestamp = "t1"
				return ev
			},
		},
		{
			name:  "failed scan",
			input: `{"event":"scan","verified":false,"error":"Unknown tag","uid":"04AB","timestamp":"t2"}`,
			expectedEvent: func() Event {
				ev := Failed("Unknown tag", "")
				ev.UID = "04AB"
				ev.Timestamp = "t2"
				return ev
			},
		},
		{
			name:  "scan with error and no verified flag",
			input: `{"event":"scan","error":"ID mismatch","timestamp":"t3"}`,
			expectedEvent: func() Event {
				return Event{Type: EventScan, Error: "ID mismatch", Timestamp: "t3"}
			},
		},
		{
			name:  "connected greeting",
			input: `{"event":"connected","timestamp":"t0","message":"hello"}`,
			expectedEvent: func() Event {
				return Connected("t0", "hello")
			},
		},
		{
			name:        "not json",
			input:       `not-a-json`,
			expectedErr: ErrDecode,
		},
		{
			name:        "wrong field type",
			input:       `{"event":"scan","verified":"yes","timestamp":"t"}`,
			expectedErr: ErrDecode,
		},
		{
			name:        "unknown tag",
			input:       `{"event":"heartbeat","timestamp":"t"}`,
			expectedErr: ErrUnknownEvent,
		},
		{
			name:        "missing timestamp",
			input:       `{"event":"scan","verified":true,"student_id":"S1"}`,
			expectedErr: ErrMissingTimestamp,
		},
		{
			name:        "scan without outcome",
			input:       `{"event":"scan","verified":false,"timestamp":"t"}`,
			expectedErr: ErrIncompleteOutcome,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.input))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Equal(t, Event{}, ev)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedEvent(), ev)
		})
	}
}

func Test_IsVerified(t *testing.T) {
	assert.True(t, Verified("S1", "Alice", "", "").IsVerified())
	assert.False(t, Failed("nope", "").IsVerified())
	assert.False(t, Event{Type: EventScan}.IsVerified())
}
