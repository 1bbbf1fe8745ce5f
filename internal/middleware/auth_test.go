package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestJWTAuth_RoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")

	userID := uuid.New()
	token, err := auth.GenerateAccessToken(userID, "user@example.com", "AB12CD34", false)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := auth.ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims failed: %v", err)
	}

	if got, _ := claims["user_id"].(string); got != userID.String() {
		t.Errorf("expected user_id %q, got %q", userID.String(), got)
	}
	if got, _ := claims["referral_code"].(string); got != "AB12CD34" {
		t.Errorf("expected referral_code AB12CD34, got %q", got)
	}
	if isAdmin, _ := claims["is_admin"].(bool); isAdmin {
		t.Errorf("expected is_admin false")
	}
}

func TestJWTAuth_RejectsWrongSecret(t *testing.T) {
	token, err := NewJWTAuth("secret-a").GenerateAccessToken(uuid.New(), "user@example.com", "AB12CD34", false)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := NewJWTAuth("secret-b").ParseClaims(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestJWTMiddleware_AttachesClaims(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	userID := uuid.New()
	token, err := auth.GenerateAccessToken(userID, "user@example.com", "AB12CD34", true)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	var gotUserID uuid.UUID
	var gotCode string
	var gotAdmin bool
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotCode = GetReferralCode(r.Context())
		gotAdmin = IsAdmin(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotUserID != userID {
		t.Errorf("expected user id %v in context, got %v", userID, gotUserID)
	}
	if gotCode != "AB12CD34" {
		t.Errorf("expected referral code in context, got %q", gotCode)
	}
	if !gotAdmin {
		t.Errorf("expected admin claim in context")
	}
}

func TestJWTMiddleware_RejectsMissingOrMalformedHeader(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run without valid auth")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	auth := NewJWTAuth("test-secret")

	run := func(isAdmin bool) int {
		token, err := auth.GenerateAccessToken(uuid.New(), "user@example.com", "AB12CD34", isAdmin)
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}

		handler := auth.Middleware(AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := run(true); code != http.StatusOK {
		t.Errorf("expected admin to pass, got %d", code)
	}
	if code := run(false); code != http.StatusForbidden {
		t.Errorf("expected non-admin rejected with 403, got %d", code)
	}
}
