package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"connectez-backend/internal/middleware"
	"connectez-backend/internal/repository"
	"connectez-backend/internal/services"
)

type DashboardHandler struct {
	stats    *repository.StatsRepo
	installs *repository.InstallationRepo
	sessions *repository.SessionRepo
}

func NewDashboardHandler(stats *repository.StatsRepo, installs *repository.InstallationRepo, sessions *repository.SessionRepo) *DashboardHandler {
	return &DashboardHandler{stats: stats, installs: installs, sessions: sessions}
}

// Stats serves the same aggregate view the websocket pushes, for dashboards
// that poll instead.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	referralCode := middleware.GetReferralCode(r.Context())

	stats, err := h.stats.GetReferralStats(r.Context(), referralCode, time.Now().UTC(), services.ActiveUserWindow, services.FreshnessWindow)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load stats", r))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Details returns per-day buckets over a trailing window plus the most recent
// activity sessions under the caller's referral code. ?days defaults to 30
// and is capped at 90.
func (h *DashboardHandler) Details(w http.ResponseWriter, r *http.Request) {
	referralCode := middleware.GetReferralCode(r.Context())

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "days must be a positive integer", r))
			return
		}
		days = n
	}
	if days > 90 {
		days = 90
	}

	now := time.Now().UTC()

	daily, err := h.stats.DailyStats(r.Context(), referralCode, days, now)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load daily stats", r))
		return
	}

	stats, err := h.stats.GetReferralStats(r.Context(), referralCode, now, services.ActiveUserWindow, services.FreshnessWindow)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load stats", r))
		return
	}

	history, err := h.sessions.ListByReferral(r.Context(), referralCode, 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load session history", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"daily_stats":     daily,
		"recent_installs": stats.RecentInstalls,
		"session_history": history,
	})
}

// InstallationDetail returns one installation with its session ledger. The
// installation must belong to the caller's referral code.
func (h *DashboardHandler) InstallationDetail(w http.ResponseWriter, r *http.Request) {
	referralCode := middleware.GetReferralCode(r.Context())
	installID := chi.URLParam(r, "installID")

	inst, err := h.installs.GetByInstallID(r.Context(), installID)
	if err != nil {
		if repository.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Installation not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load installation", r))
		return
	}
	if inst.ReferralCode != referralCode {
		// Hide existence of other users' installations.
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Installation not found", r))
		return
	}

	sessions, err := h.sessions.ListByInstall(r.Context(), installID, 100)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load sessions", r))
		return
	}

	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"installation": inst,
		"is_online":    inst.IsOnline(now, services.FreshnessWindow),
		"sessions":     sessions,
	})
}
