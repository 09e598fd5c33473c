package kiosk

import (
	"testing"

	"nfc-kiosk/internal/scan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MachineTransitions(t *testing.T) {
	m := NewMachine()

	_, ok := m.Elapse(TimerVerifying, 0)
	assert.False(t, ok, "timer without a cycle")

	tr, ok := m.Observe(alice("t1"))
	require.True(t, ok)
	assert.Equal(t, Transition{
		From:      StateIdle,
		To:        StateVerifying,
		CancelAll: true,
		Arm:       &Arm{Timer: TimerVerifying, After: VerifyingMinTime, Cycle: 1},
	}, tr)

	_, ok = m.Elapse(TimerResult, 1)
	assert.False(t, ok, "result timer while verifying")

	tr, ok = m.Elapse(TimerVerifying, 1)
	require.True(t, ok)
	assert.Equal(t, StateResult, tr.To)
	assert.Equal(t, &Arm{Timer: TimerResult, After: SuccessDisplayTime, Cycle: 1}, tr.Arm)
	res, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, "Alice", res.StudentName)

	tr, ok = m.Observe(unknownTag("t2"))
	require.True(t, ok)
	assert.Equal(t, StateResult, tr.From)
	assert.Equal(t, uint64(2), tr.Arm.Cycle)
	_, ok = m.Result()
	assert.False(t, ok)

	_, ok = m.Elapse(TimerResult, 1)
	assert.False(t, ok, "stale timer from previous cycle")
	assert.Equal(t, StateVerifying, m.State())

	tr, ok = m.Elapse(TimerVerifying, 2)
	require.True(t, ok)
	assert.Equal(t, FailDisplayTime, tr.Arm.After)

	tr, ok = m.Elapse(TimerResult, 2)
	require.True(t, ok)
	assert.Equal(t, Transition{From: StateResult, To: StateIdle}, tr)
	_, ok = m.Result()
	assert.False(t, ok)
}

func Test_MachineDeduplicatesTimestamps(t *testing.T) {
	cases := []struct {
		name     string
		events   []scan.Event
		accepted []bool
	}{
		{
			name:     "same timestamp twice",
			events:   []scan.Event{alice("t1"), alice("t1")},
			accepted: []bool{true, false},
		},
		{
			name:     "same timestamp different payload",
			events:   []scan.Event{alice("t1"), unknownTag("t1")},
			accepted: []bool{true, false},
		},
		{
			name:     "distinct timestamps",
			events:   []scan.Event{alice("t1"), alice("t2"), alice("t1")},
			accepted: []bool{true, true, true},
		},
		{
			name:     "empty timestamp is still a key",
			events:   []scan.Event{alice(""), alice("")},
			accepted: []bool{true, false},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			for i, ev := range tt.events {
				_, ok := m.Observe(ev)
				assert.Equal(t, tt.accepted[i], ok, "event %d", i)
			}
		})
	}
}
