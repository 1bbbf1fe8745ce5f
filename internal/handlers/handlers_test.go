package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"connectez-backend/internal/models"
	"connectez-backend/internal/services"
)

// ─── Error mapping ───

func TestHandleServiceError_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"email": "bad"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "taken"}, http.StatusConflict, "CONFLICT"},
		{"duplicate device", &services.DuplicateDeviceError{Message: "dup"}, http.StatusConflict, "DUPLICATE_DEVICE"},
		{"not found", &services.NotFoundError{Message: "missing"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "nope"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "no"}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", assertableError("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, rr.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error.Code != tc.code {
				t.Errorf("expected error code %q, got %q", tc.code, resp.Error.Code)
			}
		})
	}
}

type assertableError string

func (e assertableError) Error() string { return string(e) }

func TestErrorResp_CarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")

	resp := errorResp("NOT_FOUND", "missing", req)
	if resp.Error.RequestID != "req-123" {
		t.Errorf("expected request id propagated, got %q", resp.Error.RequestID)
	}
}

// ─── Tracking handler validation ───

func TestTrackingHandlerRejectsBadInput(t *testing.T) {
	h := NewTrackingHandler(nil)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
	}{
		{"install bad json", h.Install, "{not json"},
		{"install bad extension id", h.Install, `{"referral_code":"AB12CD34","install_id":"x","extension_id":"not-a-uuid"}`},
		{"heartbeat bad json", h.Heartbeat, "{not json"},
		{"heartbeat missing install id", h.Heartbeat, `{}`},
		{"opt-in bad json", h.OptIn, "{not json"},
		{"opt-in missing install id", h.OptIn, `{"opted_in":true}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(tc.body)))
			rr := httptest.NewRecorder()

			tc.handler(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestUninstallRequiresInstallID(t *testing.T) {
	h := NewTrackingHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/track/uninstall?referralCode=AB12CD34", nil)
	rr := httptest.NewRecorder()
	h.Uninstall(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without installId, got %d", rr.Code)
	}
}

// ─── Tracking URL ───

func TestTrackingURL(t *testing.T) {
	ext := &models.Extension{
		ID:       uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		StoreURL: "https://chromewebstore.google.com/detail/my-ext/abcdef",
	}

	got := trackingURL(ext, "AB12CD34")

	if !strings.Contains(got, "ref=AB12CD34") {
		t.Errorf("expected ref parameter in %q", got)
	}
	if !strings.Contains(got, "ext=11111111-2222-3333-4444-555555555555") {
		t.Errorf("expected ext parameter in %q", got)
	}
	if !strings.HasPrefix(got, "https://chromewebstore.google.com/detail/my-ext/abcdef?") {
		t.Errorf("expected store URL preserved, got %q", got)
	}
}

func TestTrackingURL_PreservesExistingQuery(t *testing.T) {
	ext := &models.Extension{
		ID:       uuid.New(),
		StoreURL: "https://microsoftedge.microsoft.com/addons/detail/x?hl=en",
	}

	got := trackingURL(ext, "AB12CD34")

	if !strings.Contains(got, "hl=en") {
		t.Errorf("expected existing query parameter kept, got %q", got)
	}
	if !strings.Contains(got, "ref=AB12CD34") {
		t.Errorf("expected ref parameter added, got %q", got)
	}
}
