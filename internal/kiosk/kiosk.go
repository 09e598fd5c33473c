package kiosk

import (
	"log/slog"
	"sync"

	"nfc-kiosk/internal/scan"
	"nfc-kiosk/internal/stream"

	"github.com/jonboulle/clockwork"
)

// Snapshot is everything a screen needs to draw one frame.
type Snapshot struct {
	State  State
	Status stream.Status
	Result *scan.Event
}

type View interface {
	Render(s Snapshot)
}

type Config struct {
	Clock clockwork.Clock
	View  View
}

// Kiosk drives a Machine from stream callbacks and its own timers. It
// implements stream.Listener.
type Kiosk struct {
	clock clockwork.Clock
	view  View

	mu      sync.Mutex
	machine *Machine
	status  stream.Status
	timers  map[TimerKind]clockwork.Timer
	closed  bool
}

func New(cfg Config) *Kiosk {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Kiosk{
		clock:   cfg.Clock,
		view:    cfg.View,
		machine: NewMachine(),
		status:  stream.StatusConnecting,
		timers:  make(map[TimerKind]clockwork.Timer),
	}
}

func (k *Kiosk) OnStatus(status stream.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	k.status = status
	k.renderLocked()
}

func (k *Kiosk) OnScan(ev scan.Event) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	tr, ok := k.machine.Observe(ev)
	if !ok {
		slog.Debug("Ignoring already processed scan", "timestamp", ev.Timestamp)
		return
	}
	k.applyLocked(tr)
}

func (k *Kiosk) Snapshot() Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.snapshotLocked()
}

// Refresh redraws the current frame.
func (k *Kiosk) Refresh() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.renderLocked()
}

// Close disarms all pending timers. Further callbacks are ignored.
func (k *Kiosk) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	k.cancelTimersLocked()
}

func (k *Kiosk) elapse(timer TimerKind, cycle uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	tr, ok := k.machine.Elapse(timer, cycle)
	if !ok {
		return
	}
	k.applyLocked(tr)
}

func (k *Kiosk) applyLocked(tr Transition) {
	if tr.CancelAll {
		k.cancelTimersLocked()
	}
	if tr.Arm != nil {
		arm := *tr.Arm
		if t, ok := k.timers[arm.Timer]; ok {
			t.Stop()
		}
		k.timers[arm.Timer] = k.clock.AfterFunc(arm.After, func() {
			k.elapse(arm.Timer, arm.Cycle)
		})
	}
	slog.Debug("Kiosk transition", "from", tr.From, "to", tr.To)
	k.renderLocked()
}

func (k *Kiosk) cancelTimersLocked() {
	for kind, t := range k.timers {
		t.Stop()
		delete(k.timers, kind)
	}
}

func (k *Kiosk) snapshotLocked() Snapshot {
	s := Snapshot{State: k.machine.State(), Status: k.status}
	if ev, ok := k.machine.Result(); ok {
		s.Result = &ev
	}
	return s
}

func (k *Kiosk) renderLocked() {
	if k.view != nil {
		k.view.Render(k.snapshotLocked())
	}
}
