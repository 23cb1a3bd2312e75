package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"aula-backend/internal/models"
	"aula-backend/internal/services"
)

func TestHandleServiceErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"title": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "taken"}, http.StatusConflict, "CONFLICT"},
		{"state conflict", &services.StateConflictError{Message: "already ended"}, http.StatusConflict, "STATE_CONFLICT"},
		{"not found", &services.NotFoundError{Message: "gone"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "bad token"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "not yours"}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-123")

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, rr.Code)
			}

			var resp models.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to parse error envelope: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Errorf("Expected code %q, got %q", tc.wantCode, resp.Error.Code)
			}
			if resp.Error.RequestID != "req-123" {
				t.Errorf("Expected request ID to be echoed, got %q", resp.Error.RequestID)
			}
		})
	}
}

func TestValidationFields(t *testing.T) {
	type form struct {
		Title string `validate:"required"`
		Week  int    `validate:"min=1,max=52"`
	}

	err := validate.Struct(form{Week: 99})
	fields := validationFields(err)

	if fields["Title"] != "failed required validation" {
		t.Errorf("Expected required failure for Title, got %q", fields["Title"])
	}
	if fields["Week"] != "failed max validation" {
		t.Errorf("Expected max failure for Week, got %q", fields["Week"])
	}
}

func TestDeckFileAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed bool
	}{
		{"lecture.pdf", true},
		{"lecture.PDF", true},
		{"slides.pptx", true},
		{"slides.ppt", true},
		{"notes.docx", false},
		{"archive.zip", false},
		{"noextension", false},
	}

	for _, tc := range tests {
		if got := deckFileAllowed(tc.name); got != tc.allowed {
			t.Errorf("deckFileAllowed(%q) = %v, want %v", tc.name, got, tc.allowed)
		}
	}
}

func TestNewInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := newInviteCode()
		if len(code) != 8 {
			t.Fatalf("Expected 8-character code, got %q", code)
		}
		for _, ch := range code {
			if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f') {
				t.Fatalf("Expected hex characters only, got %q", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 90 {
		t.Fatalf("Expected codes to be effectively unique, got %d distinct of 100", len(seen))
	}
}
