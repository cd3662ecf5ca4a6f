package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/chathub/internal/auth"
	"github.com/geocoder89/chathub/internal/chat"
	"github.com/geocoder89/chathub/internal/config"
	"github.com/geocoder89/chathub/internal/domain/user"
	apphttp "github.com/geocoder89/chathub/internal/http"
	"github.com/geocoder89/chathub/internal/http/handlers"
	"github.com/geocoder89/chathub/internal/http/middlewares"
	"github.com/geocoder89/chathub/internal/observability"
	"github.com/geocoder89/chathub/internal/realtime"
	"github.com/geocoder89/chathub/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const testSecret = "test-secret-key"

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		StoreDriver:         config.StoreDriverMemory,
		JWTSecret:           testSecret, // deterministic test secret
		JWTAccessTTLMinutes: 60,
		AdminEmail:          "admin@example.com",
		AdminPassword:       "admin-password",
		AdminFirstName:      "Test",
		AdminLastName:       "Admin",
		MaxBodyBytes:        1 << 20,
		RateLimitRequests:   1000,
		RateLimitWindow:     time.Minute,
	}
}

type apiErrorResponse struct {
	Error struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"requestId"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
}

type testApp struct {
	router *gin.Engine
	tokens *auth.Manager
	hub    *realtime.Hub
	admin  string
}

func setupTestApp(t *testing.T, cfg config.Config) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// Basic logger that discards outputs during tests
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := memory.NewStore()
	prom := observability.NewProm()
	hub := realtime.NewHub(8, prom, logger)

	svc := chat.NewService(store.Users(), store.Conversations(), store.Messages(),
		chat.WithNotifier(hub),
		chat.WithLogger(logger),
		chat.WithPasswordHasher(func(pw string) (string, error) { return "test:" + pw, nil }),
	)

	ctx := context.Background()
	if err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminFirstName, cfg.AdminLastName); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	admin, err := store.Users().GetByEmail(ctx, cfg.AdminEmail)
	if err != nil {
		t.Fatalf("load admin: %v", err)
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())

	router := apphttp.NewRouter(logger, cfg, apphttp.Deps{
		Chat:       svc,
		Verifier:   tokens,
		Prom:       prom,
		LimitStore: middlewares.NewMemoryLimitStore(),
		Hub:        hub,
		Checks:     map[string]handlers.PingFunc{"memory": func(context.Context) error { return nil }},
	})

	return &testApp{router: router, tokens: tokens, hub: hub, admin: admin.ID}
}

func (a *testApp) token(t *testing.T, userID string, role user.Role) string {
	t.Helper()

	tok, err := a.tokens.GenerateAccessToken(userID, string(role))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, w.Code, w.Body.String())
	}
}

// createUser goes through the admin endpoint and returns the new id.
func (a *testApp) createUser(t *testing.T, email string) string {
	t.Helper()

	body := `{"first_name":"Test","last_name":"User","email":"` + email + `","password":"password123","role":"guest"}`
	w := doRequest(a.router, http.MethodPost, "/users", a.token(t, a.admin, user.RoleAdmin), body)
	expectStatus(t, w, http.StatusCreated)

	var u user.User
	mustReadJSON(t, w, &u)
	return u.ID
}

func (a *testApp) createConversation(t *testing.T, token string, participants ...string) string {
	t.Helper()

	ids, _ := json.Marshal(participants)
	w := doRequest(a.router, http.MethodPost, "/conversations", token, `{"participants":`+string(ids)+`}`)
	expectStatus(t, w, http.StatusCreated)

	var c struct {
		ID string `json:"conversation_id"`
	}
	mustReadJSON(t, w, &c)
	return c.ID
}

func TestHealthAndMetrics(t *testing.T) {
	app := setupTestApp(t, testConfig())

	expectStatus(t, doRequest(app.router, http.MethodGet, "/healthz", "", ""), http.StatusOK)
	expectStatus(t, doRequest(app.router, http.MethodGet, "/readyz", "", ""), http.StatusOK)

	w := doRequest(app.router, http.MethodGet, "/metrics", "", "")
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "chathub_http_requests_total") {
		t.Fatalf("expected request metrics, body=%s", w.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	app := setupTestApp(t, testConfig())

	w := doRequest(app.router, http.MethodGet, "/conversations", "", "")
	expectStatus(t, w, http.StatusUnauthorized)

	var apiErr apiErrorResponse
	mustReadJSON(t, w, &apiErr)
	if apiErr.Error.Code != "unauthorized" || apiErr.Error.RequestID == "" {
		t.Fatalf("unexpected error envelope %+v", apiErr)
	}

	w = doRequest(app.router, http.MethodGet, "/conversations", "not-a-jwt", "")
	expectStatus(t, w, http.StatusUnauthorized)

	other := auth.NewManager("another-secret", time.Hour)
	forged, _ := other.GenerateAccessToken(app.admin, string(user.RoleAdmin))
	expectStatus(t, doRequest(app.router, http.MethodGet, "/users/me", forged, ""), http.StatusUnauthorized)
}

func TestUserManagementIsAdminOnly(t *testing.T) {
	app := setupTestApp(t, testConfig())
	a := app.createUser(t, "a@example.com")
	aTok := app.token(t, a, user.RoleGuest)

	body := `{"first_name":"X","last_name":"Y","email":"x@example.com","password":"password123","role":"guest"}`
	expectStatus(t, doRequest(app.router, http.MethodPost, "/users", aTok, body), http.StatusForbidden)

	// duplicate email
	w := doRequest(app.router, http.MethodPost, "/users", app.token(t, app.admin, user.RoleAdmin),
		`{"first_name":"A","last_name":"Again","email":"a@example.com","password":"password123","role":"guest"}`)
	expectStatus(t, w, http.StatusBadRequest)

	var apiErr apiErrorResponse
	mustReadJSON(t, w, &apiErr)
	if apiErr.Error.Code != "email_taken" {
		t.Fatalf("expected email_taken, got %+v", apiErr)
	}

	w = doRequest(app.router, http.MethodGet, "/users/me", aTok, "")
	expectStatus(t, w, http.StatusOK)
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("password must never be returned: %s", w.Body.String())
	}

	w = doRequest(app.router, http.MethodPatch, "/users/me", aTok, `{"first_name":"Renamed"}`)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"first_name":"Renamed"`) {
		t.Fatalf("update not applied: %s", w.Body.String())
	}

	expectStatus(t, doRequest(app.router, http.MethodDelete, "/users/"+a, aTok, ""), http.StatusForbidden)
	expectStatus(t, doRequest(app.router, http.MethodDelete, "/users/"+a, app.token(t, app.admin, user.RoleAdmin), ""), http.StatusNoContent)
	expectStatus(t, doRequest(app.router, http.MethodGet, "/users/"+a, app.token(t, app.admin, user.RoleAdmin), ""), http.StatusNotFound)
}

func TestConversationFlow(t *testing.T) {
	app := setupTestApp(t, testConfig())

	a := app.createUser(t, "a@example.com")
	b := app.createUser(t, "b@example.com")
	c := app.createUser(t, "c@example.com")
	aTok := app.token(t, a, user.RoleGuest)
	bTok := app.token(t, b, user.RoleGuest)
	cTok := app.token(t, c, user.RoleGuest)

	convID := app.createConversation(t, aTok, b)

	// sender comes from the token, not the body
	w := doRequest(app.router, http.MethodPost, "/conversations/"+convID+"/send_message", aTok,
		`{"message_body":"hello","sender":"`+c+`"}`)
	expectStatus(t, w, http.StatusCreated)
	if !strings.Contains(w.Body.String(), `"sender":"`+a+`"`) {
		t.Fatalf("sender must be the caller: %s", w.Body.String())
	}

	w = doRequest(app.router, http.MethodPost, "/messages", bTok,
		`{"conversation":"`+convID+`","message_body":"hi back"}`)
	expectStatus(t, w, http.StatusCreated)

	var msg struct {
		ID string `json:"message_id"`
	}
	mustReadJSON(t, w, &msg)

	// detail nests participants and messages in order
	w = doRequest(app.router, http.MethodGet, "/conversations/"+convID, bTok, "")
	expectStatus(t, w, http.StatusOK)

	var detail struct {
		Participants []user.User `json:"participants"`
		Messages     []struct {
			Body string `json:"message_body"`
		} `json:"messages"`
	}
	mustReadJSON(t, w, &detail)
	if len(detail.Participants) != 2 || len(detail.Messages) != 2 || detail.Messages[0].Body != "hello" {
		t.Fatalf("unexpected detail %s", w.Body.String())
	}

	// outsider sees nothing
	expectStatus(t, doRequest(app.router, http.MethodGet, "/conversations/"+convID, cTok, ""), http.StatusForbidden)
	expectStatus(t, doRequest(app.router, http.MethodGet, "/messages/"+msg.ID, cTok, ""), http.StatusForbidden)
	expectStatus(t, doRequest(app.router, http.MethodPost, "/conversations/"+convID+"/send_message", cTok, `{"message_body":"x"}`), http.StatusForbidden)

	w = doRequest(app.router, http.MethodGet, "/messages", cTok, "")
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"count":0`) {
		t.Fatalf("outsider must see an empty page: %s", w.Body.String())
	}

	w = doRequest(app.router, http.MethodGet, "/conversations", cTok, "")
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"count":0`) {
		t.Fatalf("outsider must see no conversations: %s", w.Body.String())
	}

	// adding c opens the conversation up
	w = doRequest(app.router, http.MethodPost, "/conversations/"+convID+"/add_participant", bTok, `{"user_id":"`+c+`"}`)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "participant added") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = doRequest(app.router, http.MethodGet, "/conversations/"+convID+"/conversation_messages", cTok, "")
	expectStatus(t, w, http.StatusOK)

	var history []struct {
		Body   string `json:"message_body"`
		Sender string `json:"sender"`
	}
	mustReadJSON(t, w, &history)
	if len(history) != 2 || history[0].Sender != a || history[1].Sender != b {
		t.Fatalf("unexpected history %s", w.Body.String())
	}

	w = doRequest(app.router, http.MethodGet, "/messages?sender="+b, cTok, "")
	expectStatus(t, w, http.StatusOK)

	var page struct {
		Count   int `json:"count"`
		Results []struct {
			Sender user.User `json:"sender"`
		} `json:"results"`
	}
	mustReadJSON(t, w, &page)
	if page.Count != 1 || page.Results[0].Sender.ID != b {
		t.Fatalf("unexpected page %s", w.Body.String())
	}

	// validation and lookups
	expectStatus(t, doRequest(app.router, http.MethodGet, "/conversations/nope", aTok, ""), http.StatusBadRequest)
	expectStatus(t, doRequest(app.router, http.MethodGet, "/messages?page=5", aTok, ""), http.StatusNotFound)
	expectStatus(t, doRequest(app.router, http.MethodPost, "/messages", aTok,
		`{"conversation":"00000000-0000-0000-0000-000000000000","message_body":"x"}`), http.StatusBadRequest)
	expectStatus(t, doRequest(app.router, http.MethodPost, "/conversations/"+convID+"/add_participant", aTok,
		`{"user_id":"00000000-0000-0000-0000-000000000000"}`), http.StatusNotFound)
}

func TestWritesRequireJSON(t *testing.T) {
	app := setupTestApp(t, testConfig())
	a := app.createUser(t, "a@example.com")

	req := httptest.NewRequest(http.MethodPost, "/conversations", strings.NewReader("participants="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+app.token(t, a, user.RoleGuest))

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusUnsupportedMediaType)
}

func TestRateLimitPerCaller(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 2

	app := setupTestApp(t, cfg)
	tok := app.token(t, app.admin, user.RoleAdmin)

	expectStatus(t, doRequest(app.router, http.MethodGet, "/users/me", tok, ""), http.StatusOK)
	expectStatus(t, doRequest(app.router, http.MethodGet, "/users/me", tok, ""), http.StatusOK)

	w := doRequest(app.router, http.MethodGet, "/users/me", tok, "")
	expectStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRealtimeFeed(t *testing.T) {
	app := setupTestApp(t, testConfig())

	a := app.createUser(t, "a@example.com")
	b := app.createUser(t, "b@example.com")
	aTok := app.token(t, a, user.RoleGuest)
	bTok := app.token(t, b, user.RoleGuest)
	convID := app.createConversation(t, aTok, b)

	srv := httptest.NewServer(app.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?access_token=" + bTok
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// the subscription lands after the handshake completes
	deadline := time.Now().Add(2 * time.Second)
	for app.hub.Subscribers(b) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w := doRequest(app.router, http.MethodPost, "/conversations/"+convID+"/send_message", aTok, `{"message_body":"ping"}`)
	expectStatus(t, w, http.StatusCreated)

	var ev realtime.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != realtime.EventMessageCreated || ev.Data.Body != "ping" || ev.Data.SenderID != a {
		t.Fatalf("unexpected event %+v", ev)
	}

	// no token, no upgrade
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("expected dial without token to fail")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateConversationWithoutBody(t *testing.T) {
	app := setupTestApp(t, testConfig())
	a := app.createUser(t, "a@example.com")
	aTok := app.token(t, a, user.RoleGuest)

	w := doRequest(app.router, http.MethodPost, "/conversations", aTok, "")
	expectStatus(t, w, http.StatusCreated)

	var c struct {
		ID           string   `json:"conversation_id"`
		Participants []string `json:"participants"`
	}
	mustReadJSON(t, w, &c)
	if len(c.Participants) != 1 || c.Participants[0] != a {
		t.Fatalf("expected the caller as the only participant, got %v", c.Participants)
	}

	w = doRequest(app.router, http.MethodPost, "/conversations", aTok, `{"participants":[`)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestListAndUpdateUsers(t *testing.T) {
	app := setupTestApp(t, testConfig())
	adminTok := app.token(t, app.admin, user.RoleAdmin)
	a := app.createUser(t, "a@example.com")
	b := app.createUser(t, "b@example.com")
	aTok := app.token(t, a, user.RoleGuest)

	expectStatus(t, doRequest(app.router, http.MethodGet, "/users", "", ""), http.StatusUnauthorized)

	w := doRequest(app.router, http.MethodGet, "/users", aTok, "")
	expectStatus(t, w, http.StatusOK)

	var list struct {
		Count   int         `json:"count"`
		Results []user.User `json:"results"`
	}
	mustReadJSON(t, w, &list)
	if list.Count != 3 || len(list.Results) != 3 {
		t.Fatalf("expected admin plus two users, got %+v", list)
	}
	for i := 1; i < len(list.Results); i++ {
		if list.Results[i].CreatedAt.Before(list.Results[i-1].CreatedAt) {
			t.Fatalf("users not ordered by created_at: %+v", list.Results)
		}
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("password must never be returned: %s", w.Body.String())
	}

	// self
	w = doRequest(app.router, http.MethodPatch, "/users/"+a, aTok, `{"last_name":"Self"}`)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"last_name":"Self"`) {
		t.Fatalf("update not applied: %s", w.Body.String())
	}

	// someone else
	expectStatus(t, doRequest(app.router, http.MethodPatch, "/users/"+b, aTok, `{"last_name":"Nope"}`), http.StatusForbidden)

	// admin may edit anyone
	w = doRequest(app.router, http.MethodPatch, "/users/"+b, adminTok, `{"last_name":"ByAdmin"}`)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"last_name":"ByAdmin"`) {
		t.Fatalf("admin update not applied: %s", w.Body.String())
	}

	w = doRequest(app.router, http.MethodPatch, "/users/"+b, adminTok, `{"email":"a@example.com"}`)
	expectStatus(t, w, http.StatusBadRequest)

	expectStatus(t, doRequest(app.router, http.MethodPatch, "/users/nope", adminTok, `{}`), http.StatusBadRequest)
}
