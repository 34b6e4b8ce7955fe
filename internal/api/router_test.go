package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aibutler/butler-api/internal/api/handler"
	"github.com/aibutler/butler-api/internal/api/metrics"
	"github.com/aibutler/butler-api/internal/core/ports"
	"github.com/aibutler/butler-api/internal/core/service"
	"github.com/aibutler/butler-api/internal/infrastructure/db/sqlite"
	"github.com/aibutler/butler-api/internal/infrastructure/security"
)

type fakeCompleter struct {
	answer string
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(context.Context, []ports.ChatMessage) (string, error) {
	f.calls++
	return f.answer, f.err
}

type testServer struct {
	e     *echo.Echo
	store *sqlite.Store
	llm   *fakeCompleter
	auth  *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(ctx) })

	tokens, err := security.NewTokenManager(security.TokenConfig{Secret: "test-secret", Algorithm: "HS256", TTL: time.Hour})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	log := zerolog.Nop()
	llm := &fakeCompleter{answer: "We open Monday to Saturday from 8:00 to 14:00."}
	auth := service.NewAuthService(store.Users(), security.NewBcryptHasher(4), tokens, log)
	conversations := service.NewConversationService(store.Conversations(), llm, nil, service.ConversationOptions{}, log)

	reg := prometheus.NewRegistry()
	e := NewRouter(Deps{
		Logger:        log,
		Auth:          auth,
		Conversations: conversations,
		Verifier:      tokens,
		Registry:      reg,
		Metrics:       metrics.New(reg),
		Pingers:       map[string]handler.Pinger{"store": store},
	})

	return &testServer{e: e, store: store, llm: llm, auth: auth}
}

func (s *testServer) do(t *testing.T, method, target, token, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	rec := s.do(t, http.MethodPost, "/login", "", echo.MIMEApplicationForm, form.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.TokenType != "bearer" || resp.AccessToken == "" {
		t.Fatalf("unexpected token response %s", rec.Body.String())
	}
	return resp.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
}

func TestRouter_RegisterLoginProfile(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/register", "", echo.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!","role":"admin"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]any
	decode(t, rec, &created)
	if created["role"] != "user" {
		t.Fatalf("role from the request body must be ignored, got %v", created["role"])
	}

	rec = s.do(t, http.MethodPost, "/register", "", echo.MIMEApplicationJSON,
		`{"username":"alice","password":"Passw0rd!"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rec.Code)
	}

	token := s.login(t, "alice", "Passw0rd!")

	rec = s.do(t, http.MethodGet, "/profile", token, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", rec.Code)
	}
	var profile map[string]any
	decode(t, rec, &profile)
	if profile["role"] != "user" || profile["message"] != "Welcome alice. Your role is: user" {
		t.Fatalf("unexpected profile %v", profile)
	}

	rec = s.do(t, http.MethodGet, "/admin/users", token, "", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin route as user: expected 403, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/profile", "", "", "")
	if rec.Code != http.StatusUnauthorized || rec.Header().Get(echo.HeaderWWWAuthenticate) != "Bearer" {
		t.Fatalf("profile without token: expected 401 with challenge, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/login", "", echo.MIMEApplicationJSON, `{"username":"alice","password":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", rec.Code)
	}
}

func TestRouter_AdminFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if _, err := s.auth.CreateUser(ctx, ports.AdminCreateUserInput{Username: "root", Password: "Adm1nPass", Role: "admin"}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	bob, err := s.auth.Register(ctx, ports.RegisterInput{Username: "bob", Password: "Passw0rd!"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token := s.login(t, "root", "Adm1nPass")

	rec := s.do(t, http.MethodGet, "/admin/users?limit=10", token, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", rec.Code)
	}
	var users []map[string]any
	decode(t, rec, &users)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	form := url.Values{"new_role": {"admin"}}
	rec = s.do(t, http.MethodPatch, "/admin/users/"+itoa(bob.ID)+"/role", token, echo.MIMEApplicationForm, form.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("update role: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPatch, "/admin/users/999/role", token, echo.MIMEApplicationJSON, `{"new_role":"user"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update missing user: expected 404, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/admin/users", token, echo.MIMEApplicationJSON,
		`{"username":"carol","password":"Passw0rd!","role":"admin"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create: expected 201, got %d", rec.Code)
	}
}

func TestRouter_AskAndConversations(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if _, err := s.auth.Register(ctx, ports.RegisterInput{Username: "alice", Password: "Passw0rd!"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := s.auth.CreateUser(ctx, ports.AdminCreateUserInput{Username: "root", Password: "Adm1nPass", Role: "admin"}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	token := s.login(t, "alice", "Passw0rd!")

	rec := s.do(t, http.MethodPost, "/ask", token, echo.MIMEApplicationJSON,
		`{"business":"La Española Bakery","question":"What are your opening hours?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ask: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var asked struct {
		Answer         string `json:"answer"`
		ConversationID int64  `json:"conversation_id"`
	}
	decode(t, rec, &asked)
	if asked.Answer == "" || asked.ConversationID == 0 {
		t.Fatalf("unexpected ask response %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/conversations/"+itoa(asked.ConversationID), token, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get own conversation: expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/ask?business=Bakery&question=Do+you+take+returns%3F", "", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous ask: expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/conversations", token, "", "")
	var mine []map[string]any
	decode(t, rec, &mine)
	if len(mine) != 1 {
		t.Fatalf("user should only see own conversations, got %d", len(mine))
	}

	rec = s.do(t, http.MethodDelete, "/conversations/"+itoa(asked.ConversationID), token, "", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete as user: expected 403, got %d", rec.Code)
	}

	adminToken := s.login(t, "root", "Adm1nPass")
	rec = s.do(t, http.MethodGet, "/conversations?q=hours", adminToken, "", "")
	var found []map[string]any
	decode(t, rec, &found)
	if len(found) != 1 {
		t.Fatalf("admin search: expected 1 match, got %d", len(found))
	}

	rec = s.do(t, http.MethodDelete, "/conversations/"+itoa(asked.ConversationID), adminToken, "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete as admin: expected 204, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodDelete, "/conversations/"+itoa(asked.ConversationID), adminToken, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestRouter_AskUpstreamFailureStoresNothing(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if _, err := s.auth.Register(ctx, ports.RegisterInput{Username: "alice", Password: "Passw0rd!"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token := s.login(t, "alice", "Passw0rd!")
	s.llm.err = errors.New("connection reset")

	rec := s.do(t, http.MethodPost, "/ask", token, echo.MIMEApplicationJSON,
		`{"business":"Bakery","question":"What are your opening hours?"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Fatalf("upstream detail leaked: %s", rec.Body.String())
	}

	items, err := s.store.Conversations().List(ctx, ports.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no stored conversation, got %d", len(items))
	}
}

func TestRouter_WebForm(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/web", "", "", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextHTML) {
		t.Fatalf("form: expected 200 html, got %d %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}

	form := url.Values{"business": {"Bakery"}, "question": {"What are your opening hours?"}}
	rec = s.do(t, http.MethodPost, "/ask-web", "", echo.MIMEApplicationForm, form.Encode())
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Monday to Saturday") {
		t.Fatalf("ask-web: expected answer page, got %d: %s", rec.Code, rec.Body.String())
	}

	s.llm.err = errors.New("connection reset")
	rec = s.do(t, http.MethodPost, "/ask-web", "", echo.MIMEApplicationForm, form.Encode())
	if rec.Code != http.StatusServiceUnavailable || strings.Contains(rec.Body.String(), "connection reset") {
		t.Fatalf("ask-web upstream failure: got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_LoginRateLimit(t *testing.T) {
	s := newTestServer(t)

	var last int
	for i := 0; i < defaultLoginPerMinute+1; i++ {
		rec := s.do(t, http.MethodPost, "/login", "", echo.MIMEApplicationJSON, `{"username":"ghost","password":"whatever1"}`)
		last = rec.Code
		if i < defaultLoginPerMinute && rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d attempts, got %d", defaultLoginPerMinute, last)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodGet, "/health", "", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/health/ready", "", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/metrics", "", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "butler_http_requests_total") {
		t.Fatalf("metrics: expected http request counter, got %d", rec.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
