package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"connectez-backend/internal/repository"
	"connectez-backend/internal/services"
)

// AdminHandler serves the cross-referrer rollups. Routes are mounted behind
// AdminOnly, so handlers trust the admin claim.
type AdminHandler struct {
	stats    *repository.StatsRepo
	installs *repository.InstallationRepo
	sessions *repository.SessionRepo
}

func NewAdminHandler(stats *repository.StatsRepo, installs *repository.InstallationRepo, sessions *repository.SessionRepo) *AdminHandler {
	return &AdminHandler{stats: stats, installs: installs, sessions: sessions}
}

// Users returns one row per registered referrer plus grand totals.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	overview, err := h.stats.AdminOverview(r.Context(), time.Now().UTC(), services.ActiveUserWindow, services.FreshnessWindow)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load overview", r))
		return
	}

	writeJSON(w, http.StatusOK, overview)
}

// Installations lists the most recently registered installations across all
// referrers. ?limit defaults to 50 and is capped at 200.
func (h *AdminHandler) Installations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "limit must be a positive integer", r))
			return
		}
		limit = n
	}
	if limit > 200 {
		limit = 200
	}

	installs, err := h.installs.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list installations", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"installations": installs})
}

func (h *AdminHandler) HistoryByReferral(w http.ResponseWriter, r *http.Request) {
	referralCode := chi.URLParam(r, "referralCode")

	sessions, err := h.sessions.ListByReferral(r.Context(), referralCode, 200)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load session history", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *AdminHandler) HistoryByInstall(w http.ResponseWriter, r *http.Request) {
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

	sessions, err := h.sessions.ListByInstall(r.Context(), installID, 200)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load sessions", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"installation": inst,
		"sessions":     sessions,
	})
}
