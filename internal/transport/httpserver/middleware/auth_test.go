package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"todo-sync-go/internal/config"
	"todo-sync-go/pkg/logger"
)

func newIdentityProvider(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "publishable" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"user-1","email":"a@example.com","user_metadata":{"full_name":"Ada"}}`))
		case "Bearer anonymous":
			_, _ = w.Write([]byte(`{"email":"nobody@example.com"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func echoUser(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Errorf("expected user in context")
			return
		}
		_, _ = w.Write([]byte(user.ID + "|" + user.Name))
	})
}

func TestSupabaseAuthResolvesUser(t *testing.T) {
	provider := newIdentityProvider(t)
	auth := NewSupabaseAuth(config.SupabaseConfig{URL: provider.URL + "/", PublishableKey: "publishable"}, logger.NewDiscard())
	handler := auth.Middleware(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "user-1|Ada" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestSupabaseAuthRejectsBadTokens(t *testing.T) {
	provider := newIdentityProvider(t)
	auth := NewSupabaseAuth(config.SupabaseConfig{URL: provider.URL, PublishableKey: "publishable"}, logger.NewDiscard())
	handler := auth.Middleware(echoUser(t))

	for _, header := range []string{"", "Bearer bad", "Bearer anonymous", "Basic good", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/db/todos", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"invalid_token"`) {
			t.Fatalf("header %q: unexpected body %q", header, rec.Body.String())
		}
	}
}

func TestSupabaseAuthAcceptsQueryTokenOnWebsocketUpgrade(t *testing.T) {
	provider := newIdentityProvider(t)
	auth := NewSupabaseAuth(config.SupabaseConfig{URL: provider.URL, PublishableKey: "publishable"}, logger.NewDiscard())
	handler := auth.Middleware(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/api/stream/todos?access_token=good", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	plain := httptest.NewRequest(http.MethodGet, "/api/db/todos?access_token=good", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, plain)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("query token outside upgrades must be refused, got %d", rec.Code)
	}
}

func TestSupabaseAuthSkipUsesMockUser(t *testing.T) {
	auth := NewSupabaseAuth(config.SupabaseConfig{SkipAuth: true, MockUserID: " mock-1 ", MockUserName: "Mock"}, logger.NewDiscard())
	handler := auth.Middleware(echoUser(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "mock-1|Mock" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestSupabaseAuthNotConfigured(t *testing.T) {
	auth := NewSupabaseAuth(config.SupabaseConfig{}, logger.NewDiscard())
	handler := auth.Middleware(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	handler := NewCORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/db/todos", nil)
	preflight.Header.Set("Origin", "http://localhost:5173")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, preflight)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected preflight response %d %v", rec.Code, rec.Header())
	}

	foreign := httptest.NewRequest(http.MethodOptions, "/api/db/todos", nil)
	foreign.Header.Set("Origin", "http://evil.example")
	foreign.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, foreign)
	if rec.Code != http.StatusForbidden || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign preflight must be refused, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("plain request must reach the handler, got %d", rec.Code)
	}
}
