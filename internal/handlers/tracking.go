package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"connectez-backend/internal/services"
)

// TrackingHandler exposes the extension-facing tracking API. All routes are
// gated by the static API key middleware and are idempotent under retry.
type TrackingHandler struct {
	tracking *services.TrackingService
}

func NewTrackingHandler(tracking *services.TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

func (h *TrackingHandler) Install(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferralCode      string `json:"referral_code"`
		InstallID         string `json:"install_id"`
		DeviceFingerprint string `json:"device_fingerprint"`
		ExtensionID       string `json:"extension_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	install := services.InstallRequest{
		ReferralCode:      req.ReferralCode,
		InstallID:         req.InstallID,
		DeviceFingerprint: req.DeviceFingerprint,
	}
	if req.ExtensionID != "" {
		extID, err := uuid.Parse(req.ExtensionID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid extension_id", r))
			return
		}
		install.ExtensionID = &extID
	}

	result, err := h.tracking.RegisterInstall(r.Context(), install)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TrackingHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InstallID     string `json:"install_id"`
		ActiveSeconds *int64 `json:"active_seconds"`
		ForceOffline  bool   `json:"force_offline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.InstallID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "install_id is required", r))
		return
	}

	result, err := h.tracking.Heartbeat(r.Context(), services.HeartbeatRequest{
		InstallID:     req.InstallID,
		ClientSeconds: req.ActiveSeconds,
		ForceOffline:  req.ForceOffline,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TrackingHandler) OptIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InstallID string `json:"install_id"`
		OptedIn   bool   `json:"opted_in"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.InstallID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "install_id is required", r))
		return
	}

	if err := h.tracking.SetOptIn(r.Context(), req.InstallID, req.OptedIn); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Opt-in status updated"})
}

// Uninstall is hit by the browser via setUninstallURL, so it is a plain GET
// with query parameters and answers with a human-readable page.
func (h *TrackingHandler) Uninstall(w http.ResponseWriter, r *http.Request) {
	installID := r.URL.Query().Get("installId")
	if installID == "" {
		http.Error(w, "Missing installId", http.StatusBadRequest)
		return
	}

	if err := h.tracking.Uninstall(r.Context(), installID); err != nil {
		if _, ok := err.(*services.NotFoundError); ok {
			http.Error(w, "Unknown installation", http.StatusNotFound)
			return
		}
		http.Error(w, "Error processing uninstall", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(uninstallPage))
}

const uninstallPage = `<!DOCTYPE html>
<html>
<head>
    <title>Uninstalled - ConnectEz</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; text-align: center; padding: 100px 20px; background-color: #f9fafb; color: #111827; }
        .card { max-width: 500px; margin: 0 auto; background: white; padding: 40px; border-radius: 12px; box-shadow: 0 4px 6px -1px rgba(0, 0, 0, 0.1); }
        h1 { color: #4f46e5; margin-bottom: 16px; font-size: 24px; }
        p { font-size: 16px; line-height: 1.5; color: #4b5563; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Thank you for using ConnectEz!</h1>
        <p>We're sorry to see you go. Your installation has been successfully deregistered.</p>
        <p style="margin-top: 24px; font-size: 14px; color: #9ca3af;">You can close this tab now.</p>
    </div>
</body>
</html>`
