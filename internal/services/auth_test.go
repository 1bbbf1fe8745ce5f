package services

import (
	"regexp"
	"testing"
)

func TestGenerateReferralCode_Shape(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateReferralCode()
		if err != nil {
			t.Fatalf("generateReferralCode failed: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("expected 8 uppercase hex chars, got %q", code)
		}
		seen[code] = true
	}

	// 50 draws from a 4-billion space colliding down to one value would mean
	// the generator is broken.
	if len(seen) < 2 {
		t.Errorf("expected distinct codes across draws")
	}
}

func TestGenerateToken_LengthAndUniqueness(t *testing.T) {
	a, err := generateToken(64)
	if err != nil {
		t.Fatalf("generateToken failed: %v", err)
	}
	b, err := generateToken(64)
	if err != nil {
		t.Fatalf("generateToken failed: %v", err)
	}

	if len(a) != 128 {
		t.Errorf("expected 128 hex chars for 64 bytes, got %d", len(a))
	}
	if a == b {
		t.Errorf("expected distinct tokens")
	}
}

func TestEmailRegex(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"first.last+tag@sub.example.co", true},
		{"no-at-sign", false},
		{"missing@tld", false},
		{"@example.com", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := emailRegex.MatchString(tc.email); got != tc.valid {
			t.Errorf("emailRegex(%q) = %v, want %v", tc.email, got, tc.valid)
		}
	}
}
