package models

import "time"

// RecentInstall is an installation enriched for dashboard display with its
// derived online flag and the bounds of its most recent activity session.
type RecentInstall struct {
	Installation
	IsOnline         bool       `json:"is_online"`
	LastSessionStart *time.Time `json:"last_session_start,omitempty"`
	LastSessionStop  *time.Time `json:"last_session_stop,omitempty"`
}

// ReferralStats is the aggregate view pushed to a referrer's dashboard.
type ReferralStats struct {
	ReferralCode        string          `json:"referral_code"`
	TotalInstalls       int             `json:"total_installs"`
	OptIns              int             `json:"opt_ins"`
	ActiveUsers         int             `json:"active_users"`
	InactiveInstalls    int             `json:"inactive_installs"`
	UninstalledInstalls int             `json:"uninstalled_installs"`
	TotalActiveSeconds  int64           `json:"total_active_seconds"`
	RecentInstalls      []RecentInstall `json:"recent_installs"`
}

// ExtensionStats mirrors ReferralStats for a single tracked extension.
type ExtensionStats struct {
	ExtensionID    string          `json:"extension_id"`
	ExtensionName  string          `json:"extension_name"`
	TotalInstalls  int             `json:"total_installs"`
	OptIns         int             `json:"opt_ins"`
	ActiveUsers    int             `json:"active_users"`
	RecentInstalls []RecentInstall `json:"recent_installs"`
}

// DailyStat is one day's bucket in the dashboard graphs.
type DailyStat struct {
	Date        string `json:"date"`
	Installs    int    `json:"installs"`
	OptIns      int    `json:"opt_ins"`
	ActiveUsers int    `json:"active_users"`
}

// AdminUserRow is one referrer's rollup in the admin overview.
type AdminUserRow struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	ReferralCode       string    `json:"referral_code"`
	CreatedAt          time.Time `json:"created_at"`
	TotalInstalls      int       `json:"total_installs"`
	OptIns             int       `json:"opt_ins"`
	ActiveUsers        int       `json:"active_users"`
	TotalActiveSeconds int64     `json:"total_active_seconds"`
	IsOnline           bool      `json:"is_online"`
}

type AdminTotals struct {
	TotalUsers              int   `json:"total_users"`
	TotalInstalls           int   `json:"total_installs"`
	TotalOptIns             int   `json:"total_opt_ins"`
	TotalActiveUsers        int   `json:"total_active_users"`
	TotalInactive           int   `json:"total_inactive"`
	GrandTotalActiveSeconds int64 `json:"grand_total_active_seconds"`
}

type AdminOverview struct {
	Totals AdminTotals    `json:"totals"`
	Users  []AdminUserRow `json:"users"`
}
