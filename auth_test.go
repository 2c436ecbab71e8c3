package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func postJSON(t *testing.T, h http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	defer cleanupTestData("auth1@test.com")
	cleanupTestData("auth1@test.com")

	w := postJSON(t, registerHandler(db), "/register", map[string]string{
		"email":    "auth1@test.com",
		"password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d, body %s", w.Code, w.Body.String())
	}
	var reg map[string]interface{}
	json.NewDecoder(w.Body).Decode(&reg)
	if _, ok := reg["token"].(string); !ok {
		t.Errorf("expected auto-login token in register response, got %v", reg)
	}

	// Registering the same email again conflicts
	w = postJSON(t, registerHandler(db), "/register", map[string]string{
		"email":    "auth1@test.com",
		"password": "password123",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", w.Code)
	}

	// Correct credentials log in
	token := loginUser(t, "auth1@test.com", "password123")
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	// Wrong password is rejected
	w = postJSON(t, loginHandler(db), "/login", map[string]string{
		"email":    "auth1@test.com",
		"password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	w := postJSON(t, registerHandler(db), "/register", map[string]string{
		"email":    "",
		"password": "password123",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing email, got %d", w.Code)
	}

	w = postJSON(t, registerHandler(db), "/register", map[string]string{
		"email":    "auth2@test.com",
		"password": "   ",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank password, got %d", w.Code)
	}
}

func TestAuthenticateMiddleware(t *testing.T) {
	defer cleanupTestData("auth3@test.com")
	u := createTestUser(t, "auth3@test.com", "password123")

	protected := authenticate(func(w http.ResponseWriter, r *http.Request) {
		id := r.Context().Value(userIDKey).(int)
		writeJSON(w, http.StatusOK, map[string]int{"id": id})
	})

	// No token
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	// Garbage token
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", w.Code)
	}

	// Valid token resolves to the right user
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+u.Token)
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}
	var resp map[string]int
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["id"] != u.ID {
		t.Errorf("expected user %d from context, got %d", u.ID, resp["id"])
	}
}

func TestTokenQueryParamFallback(t *testing.T) {
	defer cleanupTestData("auth4@test.com")
	u := createTestUser(t, "auth4@test.com", "password123")

	req := httptest.NewRequest(http.MethodGet, "/ws/notifications?token="+u.Token, nil)
	id, ok := getUserIDFromRequest(req)
	if !ok || id != u.ID {
		t.Errorf("expected query-param token to resolve user %d, got %d ok=%v", u.ID, id, ok)
	}
}
