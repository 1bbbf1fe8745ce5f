package models

import (
	"time"

	"github.com/google/uuid"
)

// Installation lifecycle statuses. Uninstalled is terminal: only a fresh
// install registration may bring the row back to active.
const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusUninstalled = "uninstalled"
)

type Installation struct {
	ID                uuid.UUID  `json:"id"`
	InstallID         string     `json:"install_id"`
	ReferralCode      string     `json:"referral_code"`
	UserID            uuid.UUID  `json:"user_id"`
	ExtensionID       *uuid.UUID `json:"extension_id,omitempty"`
	DeviceFingerprint *string    `json:"device_fingerprint,omitempty"`
	Status            string     `json:"status"`
	OptedIn           bool       `json:"opted_in"`
	ActiveSeconds     int64      `json:"active_seconds"`
	LastActiveAt      *time.Time `json:"last_active_at"`
	InstalledAt       time.Time  `json:"installed_at"`
	UninstalledAt     *time.Time `json:"uninstalled_at,omitempty"`
}

// IsOnline reports whether the installation counts as online at the given
// instant. Uninstalled installations are offline regardless of how fresh
// their last heartbeat is.
func (i *Installation) IsOnline(now time.Time, freshness time.Duration) bool {
	if i.Status == StatusUninstalled {
		return false
	}
	if i.LastActiveAt == nil {
		return false
	}
	return now.Sub(*i.LastActiveAt) < freshness
}
