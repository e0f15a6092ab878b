package exam

import (
	"testing"
	"time"
)

func TestMonitor_FocusLossWarnsPerTransition(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor(30*time.Second, base)

	if !m.Observe(SignalTabHidden, base) {
		t.Fatal("first hidden transition must warn")
	}
	// Repeated reports while still hidden do not warn again.
	if m.Observe(SignalTabHidden, base.Add(time.Second)) {
		t.Fatal("repeated hidden signal warned twice for one transition")
	}

	m.Observe(SignalTabVisible, base.Add(2*time.Second))
	if !m.Observe(SignalTabHidden, base.Add(3*time.Second)) {
		t.Fatal("second transition into hidden must warn")
	}

	if got := m.TabSwitchCount(); got != 2 {
		t.Fatalf("tab switches = %d, want 2", got)
	}
}

func TestMonitor_ForbiddenInputWarnsPerOccurrence(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor(30*time.Second, base)

	for i := 0; i < 2; i++ {
		if !m.Observe(SignalForbiddenShortcut, base.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("forbidden shortcut %d must warn", i)
		}
	}
	if !m.Observe(SignalContextMenu, base.Add(5*time.Second)) {
		t.Fatal("context menu must warn")
	}
	if got := m.TabSwitchCount(); got != 0 {
		t.Fatalf("forbidden input must not count as tab switch, got %d", got)
	}
}

func TestMonitor_InactivityWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor(30*time.Second, base)

	// Polls every 10s: first two find the window not yet elapsed.
	if m.PollInactivity(base.Add(10 * time.Second)) {
		t.Fatal("10s idle warned early")
	}
	if m.PollInactivity(base.Add(20 * time.Second)) {
		t.Fatal("20s idle warned early")
	}
	if !m.PollInactivity(base.Add(30 * time.Second)) {
		t.Fatal("30s idle must warn")
	}

	// The clock restarts after a warning, so the next poll is quiet.
	if m.PollInactivity(base.Add(40 * time.Second)) {
		t.Fatal("poll right after an inactivity warning warned again")
	}
	if !m.PollInactivity(base.Add(60 * time.Second)) {
		t.Fatal("second full idle window must warn")
	}
}

func TestMonitor_ActivityResetsInactivityClock(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor(30*time.Second, base)

	if m.Observe(SignalActivity, base.Add(25*time.Second)) {
		t.Fatal("activity itself must not warn")
	}
	if m.PollInactivity(base.Add(30 * time.Second)) {
		t.Fatal("warned 5s after activity")
	}
	if !m.PollInactivity(base.Add(55 * time.Second)) {
		t.Fatal("30s after last activity must warn")
	}
}
