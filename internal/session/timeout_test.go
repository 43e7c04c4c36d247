// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"
)

func TestIdleTimeout_Disabled(t *testing.T) {
	w := NewIdleTimeout(DefaultIdleConfig())

	if w.Enabled() {
		t.Error("default config must leave the watchdog disabled")
	}
	if !w.Check() {
		t.Error("a disabled watchdog never expires")
	}
	if w.IsExpired() {
		t.Error("a disabled watchdog never expires")
	}
}

func TestIdleTimeout_ExpiryFiresCallback(t *testing.T) {
	w := NewIdleTimeout(IdleConfig{Timeout: 20 * time.Millisecond, WarningBefore: 10 * time.Millisecond})

	timedOut := false
	w.SetTimeoutCallback(func() { timedOut = true })

	if !w.Check() {
		t.Fatal("fresh session must be live")
	}

	time.Sleep(30 * time.Millisecond)

	if w.Check() {
		t.Error("Check must report expiry after the timeout")
	}
	if !timedOut {
		t.Error("expiry must fire the timeout callback")
	}
}

func TestIdleTimeout_WarningFiresOncePerIdleStretch(t *testing.T) {
	w := NewIdleTimeout(IdleConfig{Timeout: time.Hour, WarningBefore: time.Hour})

	warnings := 0
	w.SetWarningCallback(func(time.Duration) { warnings++ })

	// The whole lifetime is inside the warning window.
	w.Check()
	w.Check()
	if warnings != 1 {
		t.Errorf("warnings = %d, want exactly 1 per idle stretch", warnings)
	}

	// Activity re-arms the warning.
	w.RecordActivity()
	w.Check()
	if warnings != 2 {
		t.Errorf("warnings = %d, want re-armed warning after activity", warnings)
	}
}

func TestIdleTimeout_ActivityResetsClock(t *testing.T) {
	w := NewIdleTimeout(IdleConfig{Timeout: 50 * time.Millisecond})

	time.Sleep(30 * time.Millisecond)
	w.RecordActivity()
	time.Sleep(30 * time.Millisecond)

	if w.IsExpired() {
		t.Error("activity 30ms ago must not read as 60ms idle")
	}
	if w.RemainingTime() == 0 {
		t.Error("remaining time must be positive after recent activity")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{2 * time.Minute, "2m"},
		{90 * time.Second, "1m 30s"},
		{0, "0s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
