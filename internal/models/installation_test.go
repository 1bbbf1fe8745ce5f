package models

import (
	"testing"
	"time"
)

func TestInstallationIsOnline(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	freshness := 45 * time.Second

	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name   string
		inst   Installation
		online bool
	}{
		{"fresh heartbeat", Installation{Status: StatusActive, LastActiveAt: at(-10 * time.Second)}, true},
		{"just inside window", Installation{Status: StatusActive, LastActiveAt: at(-44 * time.Second)}, true},
		{"exactly at window boundary", Installation{Status: StatusActive, LastActiveAt: at(-45 * time.Second)}, false},
		{"stale heartbeat", Installation{Status: StatusActive, LastActiveAt: at(-10 * time.Minute)}, false},
		{"never seen", Installation{Status: StatusActive}, false},
		{"uninstalled with fresh heartbeat", Installation{Status: StatusUninstalled, LastActiveAt: at(-1 * time.Second)}, false},
		{"inactive but fresh", Installation{Status: StatusInactive, LastActiveAt: at(-10 * time.Second)}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.inst.IsOnline(now, freshness); got != tc.online {
				t.Errorf("IsOnline = %v, want %v", got, tc.online)
			}
		})
	}
}
