package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

func TestWebHandler_Form(t *testing.T) {
	e := newTestEcho()
	c, rec := newContext(e, http.MethodGet, "/web", "", nil)

	if err := NewWebHandler(&stubConversationService{}, nil).Form(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/ask-web"`) {
		t.Fatalf("expected the form, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebHandler_Ask(t *testing.T) {
	e := newTestEcho()
	stub := &stubConversationService{
		askFn: func(_ context.Context, input ports.AskInput) (*ports.AskResult, error) {
			if input.Caller != nil || !input.UseRetrieval || input.Business != "Bakery" {
				t.Fatalf("unexpected input %+v", input)
			}
			return &ports.AskResult{Answer: "Open <8:00> to 14:00", Conversation: &domain.Conversation{ID: 1}}, nil
		},
	}

	form := url.Values{"business": {" Bakery "}, "question": {"When do you open?"}}
	c, rec := newContext(e, http.MethodPost, "/ask-web", echo.MIMEApplicationForm, strings.NewReader(form.Encode()))

	if err := NewWebHandler(stub, nil).Ask(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, "Open &lt;8:00&gt; to 14:00") {
		t.Fatalf("expected escaped answer on the page, got %d: %s", rec.Code, body)
	}
}

func TestWebHandler_AskFailures(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		err      error
		wantCode int
		wantText string
	}{
		{"too short", url.Values{"business": {"Bakery"}, "question": {"hi"}}, nil, http.StatusBadRequest, "question must be at least 5"},
		{"upstream", url.Values{"business": {"Bakery"}, "question": {"When do you open?"}},
			&domain.UpstreamError{Stage: "completion", Err: errors.New("secret upstream detail")}, http.StatusServiceUnavailable, "temporarily unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			stub := &stubConversationService{
				askFn: func(context.Context, ports.AskInput) (*ports.AskResult, error) {
					if tt.err == nil {
						t.Fatalf("should not be called")
					}
					return nil, tt.err
				},
			}
			c, rec := newContext(e, http.MethodPost, "/ask-web", echo.MIMEApplicationForm, strings.NewReader(tt.form.Encode()))

			if err := NewWebHandler(stub, nil).Ask(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			body := rec.Body.String()
			if rec.Code != tt.wantCode || !strings.Contains(body, tt.wantText) {
				t.Fatalf("expected %d with %q, got %d: %s", tt.wantCode, tt.wantText, rec.Code, body)
			}
			if strings.Contains(body, "secret upstream detail") {
				t.Fatalf("upstream detail leaked")
			}
		})
	}
}
