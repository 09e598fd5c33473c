package kiosk

import (
	"time"

	"nfc-kiosk/internal/scan"
)

const (
	VerifyingMinTime   = 400 * time.Millisecond
	SuccessDisplayTime = 5000 * time.Millisecond
	FailDisplayTime    = 3000 * time.Millisecond
)

type State string

const (
	StateIdle      State = "idle"
	StateVerifying State = "verifying"
	StateResult    State = "result"
)

type Input int

const (
	InputScan Input = iota
	InputVerifyElapsed
	InputResultElapsed
)

type TimerKind int

const (
	TimerVerifying TimerKind = iota
	TimerResult
)

// Arm asks the driver to start a timer that feeds Input back for Cycle.
type Arm struct {
	Timer TimerKind
	After time.Duration
	Cycle uint64
}

// Transition is the outcome of one accepted input.
type Transition struct {
	From      State
	To        State
	CancelAll bool
	Arm       *Arm
}

type rule struct {
	to        State
	cancelAll bool
	enter     func(m *Machine, ev *scan.Event) *Arm
}

type key struct {
	state State
	input Input
}

var anyState = []State{StateIdle, StateVerifying, StateResult}

var table = func() map[key]rule {
	t := map[key]rule{
		{StateVerifying, InputVerifyElapsed}: {to: StateResult, enter: (*Machine).showResult},
		{StateResult, InputResultElapsed}:    {to: StateIdle, enter: (*Machine).reset},
	}
	for _, s := range anyState {
		t[key{s, InputScan}] = rule{to: StateVerifying, cancelAll: true, enter: (*Machine).beginCycle}
	}
	return t
}()

// Machine is the kiosk presentation cycle. It owns no timers; callers arm
// what a Transition asks for and feed the elapsed inputs back.
type Machine struct {
	state         State
	cycle         uint64
	pending       *scan.Event
	current       *scan.Event
	lastProcessed string
	processed     bool
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) State() State {
	return m.state
}

// Result is the event on display while in StateResult.
func (m *Machine) Result() (scan.Event, bool) {
	if m.current == nil {
		return scan.Event{}, false
	}
	return *m.current, true
}

// Observe feeds a scan. Repeated timestamps are ignored.
func (m *Machine) Observe(ev scan.Event) (Transition, bool) {
	if m.processed && ev.Timestamp == m.lastProcessed {
		return Transition{}, false
	}
	return m.apply(InputScan, &ev)
}

// Elapse feeds a fired timer. Timers from an older cycle are ignored.
func (m *Machine) Elapse(timer TimerKind, cycle uint64) (Transition, bool) {
	if cycle != m.cycle {
		return Transition{}, false
	}
	switch timer {
	case TimerVerifying:
		return m.apply(InputVerifyElapsed, nil)
	case TimerResult:
		return m.apply(InputResultElapsed, nil)
	}
	return Transition{}, false
}

func (m *Machine) apply(in Input, ev *scan.Event) (Transition, bool) {
	r, ok := table[key{m.state, in}]
	if !ok {
		return Transition{}, false
	}
	tr := Transition{From: m.state, To: r.to, CancelAll: r.cancelAll}
	m.state = r.to
	tr.Arm = r.enter(m, ev)
	return tr, true
}

func (m *Machine) beginCycle(ev *scan.Event) *Arm {
	m.cycle++
	m.lastProcessed = ev.Timestamp
	m.processed = true
	m.pending = ev
	m.current = nil
	return &Arm{Timer: TimerVerifying, After: VerifyingMinTime, Cycle: m.cycle}
}

func (m *Machine) showResult(*scan.Event) *Arm {
	m.current = m.pending
	m.pending = nil
	dwell := FailDisplayTime
	if m.current.IsVerified() {
		dwell = SuccessDisplayTime
	}
	return &Arm{Timer: TimerResult, After: dwell, Cycle: m.cycle}
}

func (m *Machine) reset(*scan.Event) *Arm {
	m.current = nil
	return nil
}
