package app

import (
	"context"
	"strings"
	"sync"
)

// EventKind is the raw client signal reported by the quiz page.
type EventKind string

const (
	EventBlur         EventKind = "blur"
	EventFocus        EventKind = "focus"
	EventBeforeUnload EventKind = "beforeunload"
	EventKeyDown      EventKind = "keydown"
)

// IntegrityEvent is one raw focus/visibility/keyboard signal from the client.
type IntegrityEvent struct {
	Kind  EventKind `json:"kind"`
	Key   string    `json:"key,omitempty"`
	Ctrl  bool      `json:"ctrl,omitempty"`
	Shift bool      `json:"shift,omitempty"`
	Alt   bool      `json:"alt,omitempty"`
	Meta  bool      `json:"meta,omitempty"`
}

// Signal is the proctoring meaning of an IntegrityEvent.
type Signal int

const (
	SignalNone Signal = iota
	SignalLeave
	SignalFocus
	SignalDevTools
)

func (s Signal) String() string {
	switch s {
	case SignalLeave:
		return "leave"
	case SignalFocus:
		return "focus"
	case SignalDevTools:
		return "devtools"
	default:
		return "none"
	}
}

// Classify maps a raw event to a signal.
func Classify(ev IntegrityEvent) Signal {
	switch ev.Kind {
	case EventBlur, EventBeforeUnload:
		return SignalLeave
	case EventFocus:
		return SignalFocus
	case EventKeyDown:
		return classifyKey(ev)
	default:
		return SignalNone
	}
}

func classifyKey(ev IntegrityEvent) Signal {
	key := strings.ToUpper(ev.Key)
	if key == "F12" {
		return SignalDevTools
	}
	mod := ev.Ctrl || ev.Meta
	switch {
	case mod && ev.Shift && isInspectorKey(key):
		return SignalDevTools
	case ev.Meta && ev.Alt && isInspectorKey(key):
		return SignalDevTools
	case mod && !ev.Shift && key == "U":
		// view-source
		return SignalDevTools
	case mod && (key == "P" || key == "S"):
		return SignalLeave
	}
	return SignalNone
}

func isInspectorKey(key string) bool {
	return key == "I" || key == "J" || key == "C"
}

// IntegrityHandler receives classified signals while the monitor is attached.
type IntegrityHandler func(ctx context.Context, sig Signal, ev IntegrityEvent)

// IntegrityMonitor is the listener set of one session. Events dispatched
// while detached are dropped.
type IntegrityMonitor struct {
	mu      sync.Mutex
	handler IntegrityHandler
}

func NewIntegrityMonitor() *IntegrityMonitor {
	return &IntegrityMonitor{}
}

// Attach installs the handler, replacing any previous one.
func (m *IntegrityMonitor) Attach(h IntegrityHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Detach removes the handler. Safe to call repeatedly.
func (m *IntegrityMonitor) Detach() {
	m.mu.Lock()
	m.handler = nil
	m.mu.Unlock()
}

func (m *IntegrityMonitor) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

// Dispatch classifies ev and hands it to the attached handler. It reports
// false when the event was dropped.
func (m *IntegrityMonitor) Dispatch(ctx context.Context, ev IntegrityEvent) bool {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return false
	}
	sig := Classify(ev)
	if sig == SignalNone {
		return false
	}
	h(ctx, sig, ev)
	return true
}
