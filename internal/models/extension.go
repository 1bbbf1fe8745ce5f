package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlatformChrome = "chrome"
	PlatformEdge   = "edge"
)

type Extension struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	StoreURL    string    `json:"store_url"`
	Platform    string    `json:"platform"`
	CreatedAt   time.Time `json:"created_at"`
	TrackingURL string    `json:"tracking_url,omitempty"`
}

type CreateExtensionRequest struct {
	Name     string `json:"name"`
	StoreURL string `json:"store_url"`
	Platform string `json:"platform"`
}
