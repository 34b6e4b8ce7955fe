package handler

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/aibutler/butler-api/internal/api/middleware"
	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn   func(ctx context.Context, input ports.RegisterInput) (*domain.User, error)
	createUserFn func(ctx context.Context, input ports.AdminCreateUserInput) (*domain.User, error)
	loginFn      func(ctx context.Context, username, password string) (*ports.LoginResult, error)
	profileFn    func(ctx context.Context, identity domain.Identity) (*domain.User, error)
	listUsersFn  func(ctx context.Context, page ports.Page) ([]*domain.User, error)
	updateRoleFn func(ctx context.Context, id int64, role string) (*domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(ctx, input)
}

func (s *stubAuthService) CreateUser(ctx context.Context, input ports.AdminCreateUserInput) (*domain.User, error) {
	return s.createUserFn(ctx, input)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthService) Profile(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	return s.profileFn(ctx, identity)
}

func (s *stubAuthService) ListUsers(ctx context.Context, page ports.Page) ([]*domain.User, error) {
	return s.listUsersFn(ctx, page)
}

func (s *stubAuthService) UpdateRole(ctx context.Context, id int64, role string) (*domain.User, error) {
	return s.updateRoleFn(ctx, id, role)
}

type stubConversationService struct {
	askFn    func(ctx context.Context, input ports.AskInput) (*ports.AskResult, error)
	listFn   func(ctx context.Context, input ports.ListConversationsInput) ([]*domain.Conversation, error)
	getFn    func(ctx context.Context, caller domain.Identity, id int64) (*domain.Conversation, error)
	deleteFn func(ctx context.Context, caller domain.Identity, id int64) error
}

func (s *stubConversationService) Ask(ctx context.Context, input ports.AskInput) (*ports.AskResult, error) {
	return s.askFn(ctx, input)
}

func (s *stubConversationService) List(ctx context.Context, input ports.ListConversationsInput) ([]*domain.Conversation, error) {
	return s.listFn(ctx, input)
}

func (s *stubConversationService) Get(ctx context.Context, caller domain.Identity, id int64) (*domain.Conversation, error) {
	return s.getFn(ctx, caller, id)
}

func (s *stubConversationService) Delete(ctx context.Context, caller domain.Identity, id int64) error {
	return s.deleteFn(ctx, caller, id)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func newContext(e *echo.Echo, method, target, contentType string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withIdentity(c echo.Context, identity domain.Identity) echo.Context {
	middleware.SetIdentity(c, identity)
	return c
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError with %d, got %v", want, err)
	}
	if he.Code != want {
		t.Fatalf("expected status %d, got %d (%v)", want, he.Code, he.Message)
	}
}

var (
	alice = domain.Identity{ID: 1, Username: "alice", Role: domain.RoleUser}
	admin = domain.Identity{ID: 9, Username: "root", Role: domain.RoleAdmin}
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
