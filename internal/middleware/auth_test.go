package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/afterdark-app/afterdark/internal/auth"
)

func newTestJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	return auth.NewJWTService("test-secret-for-auth-middleware")
}

func TestAuth_MissingHeader(t *testing.T) {
	svc := newTestJWT(t)
	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	svc := newTestJWT(t)
	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called with a malformed header")
	}))

	tests := []string{
		"Basic dXNlcjpwYXNz",
		"Bearer",
		"Bearer ",
		"just-a-token",
	}

	for _, header := range tests {
		req := httptest.NewRequest(http.MethodGet, "/feed", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rr.Code)
		}
	}
}

func TestAuth_ValidToken(t *testing.T) {
	svc := newTestJWT(t)
	token, err := svc.GenerateAccessToken("user-42", "nightowl")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	var gotUserID string
	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotUserID != "user-42" {
		t.Errorf("expected user-42 in context, got %q", gotUserID)
	}
}

func TestAuth_RejectsRefreshToken(t *testing.T) {
	svc := newTestJWT(t)
	token, err := svc.GenerateRefreshToken("user-42")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called with a refresh token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestAuth_InvalidSignature(t *testing.T) {
	other := auth.NewJWTService("a-different-secret-entirely")
	token, err := other.GenerateAccessToken("user-42", "nightowl")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	svc := newTestJWT(t)
	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called with a forged token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	svc := newTestJWT(t)
	token, err := svc.GenerateAccessToken("user-7", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	var gotUserID string
	handler := OptionalAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Anonymous request goes through with no user in context.
	req := httptest.NewRequest(http.MethodGet, "/events/nearby", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous: expected 200, got %d", rr.Code)
	}
	if gotUserID != "" {
		t.Errorf("anonymous: expected empty user ID, got %q", gotUserID)
	}

	// Authenticated request gets a user in context.
	req = httptest.NewRequest(http.MethodGet, "/events/nearby", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated: expected 200, got %d", rr.Code)
	}
	if gotUserID != "user-7" {
		t.Errorf("authenticated: expected user-7, got %q", gotUserID)
	}

	// A garbage token is ignored rather than rejected.
	req = httptest.NewRequest(http.MethodGet, "/events/nearby", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("garbage token: expected 200, got %d", rr.Code)
	}
}
