package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/aibutler/butler-api/internal/core/domain"
)

type recordingReporter struct {
	errs []error
	tags []map[string]string
}

func (r *recordingReporter) Report(_ context.Context, err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *recordingReporter) Flush() {}

func TestHTTPErrorHandler_Mapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"conflict", fmt.Errorf("create: %w", domain.ErrUserExists), http.StatusConflict},
		{"user not found", domain.ErrUserNotFound, http.StatusNotFound},
		{"conversation not found", domain.ErrConversationNotFound, http.StatusNotFound},
		{"bad credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"bad token", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"invalid role", domain.ErrInvalidRole, http.StatusBadRequest},
		{"invalid input", fmt.Errorf("%w: question too short", domain.ErrInvalidInput), http.StatusBadRequest},
		{"upstream", &domain.UpstreamError{Stage: "retrieval", Err: errors.New("dial tcp")}, http.StatusServiceUnavailable},
		{"echo error", echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			reporter := &recordingReporter{}
			handler := NewHTTPErrorHandler(zerolog.Nop(), reporter)

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			rec := httptest.NewRecorder()
			handler(tt.err, e.NewContext(req, rec))

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["error"] == "" {
				t.Fatalf("expected error message in envelope")
			}

			if tt.code == http.StatusUnauthorized && rec.Header().Get(echo.HeaderWWWAuthenticate) != "Bearer" {
				t.Fatalf("expected WWW-Authenticate on 401")
			}
			if tt.code == http.StatusInternalServerError {
				if body["error"] != "internal server error" {
					t.Fatalf("internal details leaked: %q", body["error"])
				}
				if len(reporter.errs) != 1 {
					t.Fatalf("expected unexpected error to be reported")
				}
			} else if len(reporter.errs) != 0 {
				t.Fatalf("expected no report for %v", tt.err)
			}
		})
	}
}

func TestHTTPErrorHandler_CommittedResponse(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = c.NoContent(http.StatusNoContent)

	NewHTTPErrorHandler(zerolog.Nop(), nil)(errors.New("late"), c)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected original status to be kept, got %d", rec.Code)
	}
}
