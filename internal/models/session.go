package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one contiguous activity interval for an installation.
// DurationSeconds is a cache of last_heartbeat - start_time; it is always
// recomputed from the two timestamps, never incremented on its own.
type Session struct {
	ID              uuid.UUID `json:"id"`
	InstallID       string    `json:"install_id"`
	StartTime       time.Time `json:"start_time"`
	LastHeartbeat   time.Time `json:"last_heartbeat"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}
