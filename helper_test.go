package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// Initialize JWT secret for helper tests
func init() {
	jwtSecret = []byte("test-secret-key-for-testing")
}

// createTestUser creates a user with the given email and password, returns TestUser with ID and Token
func createTestUser(t *testing.T, email, password string) TestUser {
	t.Helper()

	// Clean up existing user
	cleanupTestData(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}

	var userID int
	err = db.QueryRow("INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id", email, string(hash)).Scan(&userID)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	// Login to get token
	token := loginUser(t, email, password)

	return TestUser{
		ID:       userID,
		Email:    email,
		Password: password,
		Token:    token,
	}
}

// loginUser logs in a user and returns the JWT token
func loginUser(t *testing.T, email, password string) string {
	t.Helper()

	reqBody := []byte(fmt.Sprintf(`{"email":"%s","password":"%s"}`, email, password))
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	loginHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login failed for %s: status %d", email, w.Code)
	}

	var respBody map[string]interface{}
	json.NewDecoder(w.Body).Decode(&respBody)
	token, ok := respBody["token"].(string)
	if !ok {
		t.Fatalf("expected token in login response, got %v", respBody)
	}

	return token
}

// createTestProfile creates a complete profile for a user via the handler
func createTestProfile(t *testing.T, user TestUser, profile TestProfile) {
	t.Helper()

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		t.Fatalf("failed to marshal profile: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/me/profile", bytes.NewBuffer(profileJSON))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	meProfileHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("failed to create profile for user %d: status %d, body %s", user.ID, w.Code, w.Body.String())
	}
}

// setTestInterests replaces a user's interest set via the handler
func setTestInterests(t *testing.T, user TestUser, names []string) {
	t.Helper()

	body, _ := json.Marshal(names)
	req := httptest.NewRequest(http.MethodPost, "/me/interests", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	meInterestsHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("failed to set interests for user %d: status %d", user.ID, w.Code)
	}
}

// createConnection inserts a friend_connections row directly
func createConnection(t *testing.T, requesterID, receiverID int, status string) {
	t.Helper()

	_, err := db.Exec("INSERT INTO friend_connections (requester_id, receiver_id, status) VALUES ($1, $2, $3)",
		requesterID, receiverID, status)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
}

// authedRequest builds a request with the user's bearer token and runs it
// through the given handler, returning the response recorder.
func authedRequest(t *testing.T, h http.Handler, method, path string, body []byte, user TestUser) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func itoa(v int) string { return strconv.Itoa(v) }

// getDefaultTestProfile returns a baseline complete profile for testing
func getDefaultTestProfile() TestProfile {
	age := 30
	return TestProfile{
		FirstName:   "Test",
		LastName:    "User",
		Age:         &age,
		Bio:         "I love testing!",
		TravelStyle: "solo",
		Languages:   "English, Spanish",
		Location: &TestLocation{
			City:    "Testville",
			State:   "Testonia",
			Country: "Testland",
		},
	}
}

// cleanupTestData removes test data for given emails
func cleanupTestData(emails ...string) {
	for _, email := range emails {
		db.Exec("DELETE FROM friend_connections WHERE requester_id IN (SELECT id FROM users WHERE email = $1) OR receiver_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM event_attendance WHERE user_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM event_attendance WHERE event_id IN (SELECT id FROM events WHERE creator_id IN (SELECT id FROM users WHERE email = $1))", email)
		db.Exec("DELETE FROM events WHERE creator_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM user_interests WHERE user_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM profiles WHERE user_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}
