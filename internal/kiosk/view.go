package kiosk

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"nfc-kiosk/internal/stream"
)

var statusText = map[stream.Status]string{
	stream.StatusConnected:    "Connected",
	stream.StatusConnecting:   "Connecting...",
	stream.StatusDisconnected: "Disconnected",
}

// Terminal draws kiosk frames as plain text.
type Terminal struct {
	w io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Render(s Snapshot) {
	var b strings.Builder
	b.WriteString("\033[H\033[2J")
	fmt.Fprintf(&b, "[%s]\n\n", statusText[s.Status])

	switch s.State {
	case StateIdle:
		b.WriteString("Tap Your Card\n")
		b.WriteString("Place your student card on the reader to verify\n")
	case StateVerifying:
		b.WriteString("Verifying...\n")
		b.WriteString("Please wait\n")
	case StateResult:
		if s.Result == nil {
			panic("kiosk: result state without a result")
		}
		if s.Result.IsVerified() {
			b.WriteString("VERIFIED\n\n")
			fmt.Fprintf(&b, "%s\n", s.Result.StudentName)
			fmt.Fprintf(&b, "ID: %s\n", s.Result.StudentID)
			fmt.Fprintf(&b, "%s\n", s.Result.Department)
		} else {
			reason := s.Result.Error
			if reason == "" {
				reason = "Unknown error"
			}
			b.WriteString("VERIFICATION FAILED\n\n")
			fmt.Fprintf(&b, "%s\n", reason)
		}
	}

	io.WriteString(t.w, b.String())
}

// Boundary shields the screen from a panicking View. After a panic it shows
// a failure notice until Reload is called.
type Boundary struct {
	view     View
	fallback io.Writer

	mu     sync.Mutex
	failed bool
	last   Snapshot
}

func NewBoundary(view View, fallback io.Writer) *Boundary {
	return &Boundary{view: view, fallback: fallback}
}

func (b *Boundary) Render(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = s
	if b.failed {
		return
	}
	b.renderLocked()
}

// Reload clears a failure and redraws the last frame.
func (b *Boundary) Reload() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed = false
	b.renderLocked()
}

func (b *Boundary) Failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

func (b *Boundary) renderLocked() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Kiosk render failed", "panic", r, "state", b.last.State)
			b.failed = true
			io.WriteString(b.fallback, "\033[H\033[2J")
			io.WriteString(b.fallback, "System Error\nPlease contact support\n\n[Press Enter to reload]\n")
		}
	}()
	b.view.Render(b.last)
}
