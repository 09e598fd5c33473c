package scan

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewRecord(t *testing.T) {
	verified := Verified("S1", "Alice", "CS", "2024-09-01")
	verified.UID = "04AB"
	verified.Timestamp = "2024-10-01T12:00:00.5Z"

	failed := Failed("ID mismatch", "S2")
	failed.Timestamp = "2024-10-01T12:00:01Z"

	badTime := Failed("NFT not found", "S3")
	badTime.Timestamp = "yesterday"

	cases := []struct {
		name        string
		input       Event
		expected    Record
		expectedErr error
	}{
		{
			name:  "verified",
			input: verified,
			expected: Record{
				ReaderID:    "reader-1",
				UID:         "04AB",
				Verified:    true,
				StudentID:   "S1",
				StudentName: "Alice",
				Department:  "CS",
				Timestamp:   "2024-10-01T12:00:00.5Z",
				ScannedAt:   1727784000500,
			},
		},
		{
			name:  "failed",
			input: failed,
			expected: Record{
				ReaderID:  "reader-1",
				StudentID: "S2",
				Error:     "ID mismatch",
				Timestamp: "2024-10-01T12:00:01Z",
				ScannedAt: 1727784001000,
			},
		},
		{
			name:        "greeting",
			input:       Connected("2024-10-01T12:00:00Z", "hello"),
			expectedErr: ErrNotScan,
		},
		{
			name:        "bad timestamp",
			input:       badTime,
			expectedErr: ErrDecode,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRecord("reader-1", tt.input)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			_, err = uuid.Parse(got.ID)
			assert.NoError(t, err)
			got.ID = ""
			assert.Equal(t, tt.expected, got)
		})
	}
}
