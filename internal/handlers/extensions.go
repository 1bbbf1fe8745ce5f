package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"connectez-backend/internal/middleware"
	"connectez-backend/internal/models"
	"connectez-backend/internal/repository"
	"connectez-backend/internal/services"
)

type ExtensionHandler struct {
	extensions *repository.ExtensionRepo
	stats      *repository.StatsRepo
}

func NewExtensionHandler(extensions *repository.ExtensionRepo, stats *repository.StatsRepo) *ExtensionHandler {
	return &ExtensionHandler{extensions: extensions, stats: stats}
}

func (h *ExtensionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateExtensionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := make(map[string]string)
	if req.Name == "" {
		fields["name"] = "Name is required"
	}
	if req.StoreURL == "" {
		fields["store_url"] = "Store URL is required"
	} else if u, err := url.Parse(req.StoreURL); err != nil || u.Scheme == "" || u.Host == "" {
		fields["store_url"] = "Store URL must be an absolute URL"
	}
	if req.Platform != models.PlatformChrome && req.Platform != models.PlatformEdge {
		fields["platform"] = "Platform must be chrome or edge"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	ext := &models.Extension{
		UserID:   middleware.GetUserID(r.Context()),
		Name:     req.Name,
		StoreURL: req.StoreURL,
		Platform: req.Platform,
	}
	if err := h.extensions.Create(r.Context(), ext); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create extension", r))
		return
	}
	ext.TrackingURL = trackingURL(ext, middleware.GetReferralCode(r.Context()))

	writeJSON(w, http.StatusCreated, ext)
}

func (h *ExtensionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	referralCode := middleware.GetReferralCode(r.Context())

	exts, err := h.extensions.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list extensions", r))
		return
	}
	for i := range exts {
		exts[i].TrackingURL = trackingURL(&exts[i], referralCode)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"extensions": exts})
}

func (h *ExtensionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ext, ok := h.ownedExtension(w, r)
	if !ok {
		return
	}

	if err := h.extensions.Delete(r.Context(), ext.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete extension", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Extension deleted"})
}

func (h *ExtensionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ext, ok := h.ownedExtension(w, r)
	if !ok {
		return
	}

	stats, err := h.stats.GetExtensionStats(r.Context(), ext.ID, time.Now().UTC(), services.ActiveUserWindow, services.FreshnessWindow)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load extension stats", r))
		return
	}
	stats.ExtensionName = ext.Name

	writeJSON(w, http.StatusOK, stats)
}

// ownedExtension resolves the {extensionID} route param and enforces that the
// extension belongs to the caller. On failure it writes the response itself.
func (h *ExtensionHandler) ownedExtension(w http.ResponseWriter, r *http.Request) (*models.Extension, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "extensionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid extension id", r))
		return nil, false
	}

	ext, err := h.extensions.GetByID(r.Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Extension not found", r))
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load extension", r))
		return nil, false
	}
	if ext.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Extension not found", r))
		return nil, false
	}
	return ext, true
}

// trackingURL appends the referral attribution parameters the extension sends
// back on install.
func trackingURL(ext *models.Extension, referralCode string) string {
	u, err := url.Parse(ext.StoreURL)
	if err != nil {
		return ext.StoreURL
	}
	q := u.Query()
	q.Set("ref", referralCode)
	q.Set("ext", ext.ID.String())
	u.RawQuery = q.Encode()
	return u.String()
}
