package exam

import (
	"sync"
	"time"
)

// SignalKind identifies a raw environment signal reported by the candidate's
// client. Signals are ephemeral; only their aggregate effect (the warning
// counter on the attempt) is persisted.
type SignalKind string

const (
	SignalTabHidden         SignalKind = "tab-hidden"
	SignalTabVisible        SignalKind = "tab-visible"
	SignalForbiddenShortcut SignalKind = "forbidden-shortcut"
	SignalContextMenu       SignalKind = "context-menu"
	SignalActivity          SignalKind = "activity"
)

// Monitor translates raw environment signals into integrity warnings:
//
//   - losing foreground focus warns once per transition into the hidden
//     state, not per report while hidden;
//   - forbidden input (copy/paste shortcut class, context menu) warns per
//     occurrence;
//   - no observed activity for the configured window warns once per poll
//     that finds the window elapsed, and the clock resets on activity.
//
// All warnings feed the single authoritative counter in the Session; the
// monitor only keeps the tab-switch tally for user-facing messaging.
type Monitor struct {
	mu           sync.Mutex
	window       time.Duration
	hidden       bool
	lastActivity time.Time
	tabSwitches  int
}

// NewMonitor creates a Monitor for one attempt. now anchors the inactivity
// clock at attempt start.
func NewMonitor(window time.Duration, now time.Time) *Monitor {
	return &Monitor{window: window, lastActivity: now}
}

// Observe processes one signal and reports whether it warrants a warning.
func (m *Monitor) Observe(kind SignalKind, now time.Time) (warn bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch kind {
	case SignalTabHidden:
		if m.hidden {
			return false
		}
		m.hidden = true
		m.tabSwitches++
		return true
	case SignalTabVisible:
		m.hidden = false
		m.lastActivity = now
		return false
	case SignalForbiddenShortcut, SignalContextMenu:
		m.lastActivity = now
		return true
	case SignalActivity:
		m.lastActivity = now
		return false
	default:
		return false
	}
}

// PollInactivity checks the inactivity window. On an elapsed window it warns
// and restarts the clock so a candidate idle across several polls is not
// warned once per poll.
func (m *Monitor) PollInactivity(now time.Time) (warn bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastActivity) >= m.window {
		m.lastActivity = now
		return true
	}
	return false
}

// TabSwitchCount returns the raw focus-loss tally.
func (m *Monitor) TabSwitchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabSwitches
}
