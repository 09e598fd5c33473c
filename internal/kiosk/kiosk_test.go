package kiosk

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"nfc-kiosk/internal/scan"
	"nfc-kiosk/internal/stream"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frames struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (f *frames) Render(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
}

func (f *frames) States() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []State
	for _, s := range f.snapshots {
		if len(out) == 0 || out[len(out)-1] != s.State {
			out = append(out, s.State)
		}
	}
	return out
}

func alice(ts string) scan.Event {
	ev := scan.Verified("S1", "Alice", "CS", "")
	ev.Timestamp = ts
	return ev
}

func unknownTag(ts string) scan.Event {
	ev := scan.Failed("Unknown tag", "")
	ev.Timestamp = ts
	return ev
}

const (
	waitFor = time.Second
	tick    = time.Millisecond
	quiet   = 50 * time.Millisecond
)

func newKiosk() (*Kiosk, *clockwork.FakeClock, *frames) {
	clk := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	view := &frames{}
	return New(Config{Clock: clk, View: view}), clk, view
}

// settle waits for a fired timer, which runs on its own goroutine, to move
// the kiosk into want.
func settle(t *testing.T, k *Kiosk, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return k.Snapshot().State == want }, waitFor, tick)
}

// stays asserts that nothing moves the kiosk out of want for a while.
func stays(t *testing.T, k *Kiosk, want State) {
	t.Helper()
	assert.Never(t, func() bool { return k.Snapshot().State != want }, quiet, tick)
}

func Test_KioskCycle(t *testing.T) {
	cases := []struct {
		name  string
		event scan.Event
		dwell time.Duration
	}{
		{name: "verified student", event: alice("t1"), dwell: SuccessDisplayTime},
		{name: "failed verification", event: unknownTag("t2"), dwell: FailDisplayTime},
		{name: "missing verified flag", event: scan.Event{Type: scan.EventScan, Error: "ID mismatch", Timestamp: "t3"}, dwell: FailDisplayTime},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			k, clk, view := newKiosk()

			k.OnScan(tt.event)
			assert.Equal(t, StateVerifying, k.Snapshot().State)
			assert.Nil(t, k.Snapshot().Result)

			clk.Advance(VerifyingMinTime - time.Millisecond)
			stays(t, k, StateVerifying)

			clk.Advance(time.Millisecond)
			settle(t, k, StateResult)
			snap := k.Snapshot()
			require.NotNil(t, snap.Result)
			assert.Equal(t, tt.event, *snap.Result)

			clk.Advance(tt.dwell - time.Millisecond)
			stays(t, k, StateResult)

			clk.Advance(time.Millisecond)
			settle(t, k, StateIdle)
			assert.Nil(t, k.Snapshot().Result)
			assert.Equal(t, []State{StateVerifying, StateResult, StateIdle}, view.States())
		})
	}
}

func Test_KioskIgnoresDuplicateTimestamp(t *testing.T) {
	k, clk, view := newKiosk()

	k.OnScan(alice("t1"))
	clk.Advance(VerifyingMinTime)
	settle(t, k, StateResult)
	k.OnScan(alice("t1"))
	assert.Equal(t, StateResult, k.Snapshot().State)

	clk.Advance(SuccessDisplayTime)
	settle(t, k, StateIdle)
	k.OnScan(alice("t1"))
	assert.Equal(t, StateIdle, k.Snapshot().State)
	assert.Equal(t, []State{StateVerifying, StateResult, StateIdle}, view.States())
}

func Test_KioskNewScanRestartsCycle(t *testing.T) {
	cases := []struct {
		name  string
		reach func(t *testing.T, k *Kiosk, clk *clockwork.FakeClock)
		from  State
	}{
		{
			name: "during verifying",
			reach: func(t *testing.T, k *Kiosk, clk *clockwork.FakeClock) {
				clk.Advance(200 * time.Millisecond)
			},
			from: StateVerifying,
		},
		{
			name: "during result",
			reach: func(t *testing.T, k *Kiosk, clk *clockwork.FakeClock) {
				clk.Advance(VerifyingMinTime)
				settle(t, k, StateResult)
				clk.Advance(time.Second)
			},
			from: StateResult,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			k, clk, _ := newKiosk()

			k.OnScan(alice("t1"))
			tt.reach(t, k, clk)
			require.Equal(t, tt.from, k.Snapshot().State)

			k.OnScan(unknownTag("t2"))
			assert.Equal(t, StateVerifying, k.Snapshot().State)
			assert.Nil(t, k.Snapshot().Result)

			clk.Advance(VerifyingMinTime)
			settle(t, k, StateResult)
			assert.Equal(t, "t2", k.Snapshot().Result.Timestamp)

			clk.Advance(FailDisplayTime)
			settle(t, k, StateIdle)

			clk.Advance(SuccessDisplayTime)
			stays(t, k, StateIdle)
		})
	}
}

func Test_KioskNeverShowsStaleResult(t *testing.T) {
	k, clk, view := newKiosk()

	k.OnScan(alice("t1"))
	clk.Advance(VerifyingMinTime - time.Millisecond)
	k.OnScan(unknownTag("t2"))
	clk.Advance(VerifyingMinTime)
	settle(t, k, StateResult)

	view.mu.Lock()
	defer view.mu.Unlock()
	for _, s := range view.snapshots {
		if s.Result != nil {
			assert.Equal(t, "t2", s.Result.Timestamp)
		}
	}
}

func Test_KioskStatus(t *testing.T) {
	k, _, _ := newKiosk()
	assert.Equal(t, stream.StatusConnecting, k.Snapshot().Status)

	k.OnStatus(stream.StatusConnected)
	assert.Equal(t, stream.StatusConnected, k.Snapshot().Status)
	assert.Equal(t, StateIdle, k.Snapshot().State)
}

func Test_KioskClose(t *testing.T) {
	k, clk, _ := newKiosk()

	k.OnScan(alice("t1"))
	k.Close()
	assert.Empty(t, k.timers)

	k.OnScan(alice("t2"))
	clk.Advance(time.Minute)
	stays(t, k, StateVerifying)
}

func Test_TerminalRender(t *testing.T) {
	failedNoReason := scan.Failed("", "")
	cases := []struct {
		name     string
		snapshot Snapshot
		contains []string
	}{
		{
			name:     "idle",
			snapshot: Snapshot{State: StateIdle, Status: stream.StatusDisconnected},
			contains: []string{"[Disconnected]", "Tap Your Card"},
		},
		{
			name:     "verifying",
			snapshot: Snapshot{State: StateVerifying, Status: stream.StatusConnecting},
			contains: []string{"[Connecting...]", "Verifying..."},
		},
		{
			name: "verified",
			snapshot: func() Snapshot {
				ev := alice("t1")
				return Snapshot{State: StateResult, Status: stream.StatusConnected, Result: &ev}
			}(),
			contains: []string{"[Connected]", "VERIFIED", "Alice", "ID: S1", "CS"},
		},
		{
			name:     "failed without reason",
			snapshot: Snapshot{State: StateResult, Status: stream.StatusConnected, Result: &failedNoReason},
			contains: []string{"VERIFICATION FAILED", "Unknown error"},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewTerminal(&buf).Render(tt.snapshot)
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func Test_BoundaryRecoversAndReloads(t *testing.T) {
	var screen, fallback bytes.Buffer
	b := NewBoundary(NewTerminal(&screen), &fallback)

	b.Render(Snapshot{State: StateResult, Status: stream.StatusConnected})
	assert.True(t, b.Failed())
	assert.Contains(t, fallback.String(), "System Error")

	b.Render(Snapshot{State: StateIdle, Status: stream.StatusConnected})
	assert.True(t, b.Failed())
	assert.NotContains(t, screen.String(), "Tap Your Card")

	b.Reload()
	assert.False(t, b.Failed())
	assert.Contains(t, screen.String(), "Tap Your Card")
}
