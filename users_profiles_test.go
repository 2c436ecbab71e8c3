package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRoundTrip(t *testing.T) {
	defer cleanupTestData("prof1@test.com")
	u := createTestUser(t, "prof1@test.com", "password123")

	createTestProfile(t, u, getDefaultTestProfile())

	w := authedRequest(t, meProfileHandler(db), http.MethodGet, "/me/profile", nil, u)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var card MatchProfile
	json.NewDecoder(w.Body).Decode(&card)
	assert.Equal(t, u.ID, card.UserID)
	assert.Equal(t, "Test", card.FirstName)
	require.NotNil(t, card.Location)
	assert.Equal(t, "Testville", card.Location.City)
	require.NotNil(t, card.Age)
	assert.Equal(t, 30, *card.Age)
}

func TestProfileUpdateOverwrites(t *testing.T) {
	defer cleanupTestData("prof1@test.com")
	u := createTestUser(t, "prof1@test.com", "password123")
	createTestProfile(t, u, getDefaultTestProfile())

	updated := getDefaultTestProfile()
	updated.Bio = "New bio"
	updated.Location = &TestLocation{City: "Lisbon", Country: "Portugal"}
	createTestProfile(t, u, updated)

	w := authedRequest(t, meProfileHandler(db), http.MethodGet, "/me/profile", nil, u)
	require.Equal(t, http.StatusOK, w.Code)

	var card MatchProfile
	json.NewDecoder(w.Body).Decode(&card)
	assert.Equal(t, "New bio", card.Bio)
	require.NotNil(t, card.Location)
	assert.Equal(t, "Lisbon", card.Location.City)

	// Still exactly one profile row
	var count int
	db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE user_id = $1`, u.ID).Scan(&count)
	assert.Equal(t, 1, count)
}

func TestProfileUpsertWithInterests(t *testing.T) {
	defer cleanupTestData("prof1@test.com")
	u := createTestUser(t, "prof1@test.com", "password123")

	body, _ := json.Marshal(map[string]interface{}{
		"first_name": "Test",
		"last_name":  "User",
		"interests":  []string{"Hiking", "Cooking"},
	})
	w := authedRequest(t, meProfileHandler(db), http.MethodPost, "/me/profile", body, u)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := userInterests(db, u.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	// Omitting the field leaves the set untouched
	body, _ = json.Marshal(map[string]interface{}{
		"first_name": "Test",
		"last_name":  "User",
	})
	w = authedRequest(t, meProfileHandler(db), http.MethodPatch, "/me/profile", body, u)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err = userInterests(db, u.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestSharedLocationRow(t *testing.T) {
	defer cleanupTestData("prof1@test.com", "prof2@test.com")
	u1 := createTestUser(t, "prof1@test.com", "password123")
	u2 := createTestUser(t, "prof2@test.com", "password123")

	createTestProfile(t, u1, getDefaultTestProfile())
	sameTown := getDefaultTestProfile()
	sameTown.Location.City = "TESTVILLE" // different casing, same place
	createTestProfile(t, u2, sameTown)

	var l1, l2 int
	require.NoError(t, db.QueryRow(`SELECT location_id FROM profiles WHERE user_id = $1`, u1.ID).Scan(&l1))
	require.NoError(t, db.QueryRow(`SELECT location_id FROM profiles WHERE user_id = $1`, u2.ID).Scan(&l2))
	assert.Equal(t, l1, l2, "profiles in the same place share one location row")
}

func TestUserProfileVisibilityGate(t *testing.T) {
	defer cleanupTestData("prof1@test.com", "prof2@test.com")
	viewer := createTestUser(t, "prof1@test.com", "password123")
	target := createTestUser(t, "prof2@test.com", "password123")
	createTestProfile(t, viewer, getDefaultTestProfile())
	createTestProfile(t, target, getDefaultTestProfile())

	// As candidates they can see each other
	w := authedRequest(t, usersDispatcher(db), http.MethodGet, "/users/"+itoa(target.ID)+"/profile", nil, viewer)
	assert.Equal(t, http.StatusOK, w.Code)

	// A rejected pair loses access
	createConnection(t, viewer.ID, target.ID, "rejected")
	w = authedRequest(t, usersDispatcher(db), http.MethodGet, "/users/"+itoa(target.ID)+"/profile", nil, viewer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Own profile is always visible
	w = authedRequest(t, usersDispatcher(db), http.MethodGet, "/users/"+itoa(viewer.ID)+"/profile", nil, viewer)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserSummary(t *testing.T) {
	defer cleanupTestData("prof1@test.com", "prof2@test.com")
	viewer := createTestUser(t, "prof1@test.com", "password123")
	target := createTestUser(t, "prof2@test.com", "password123")
	createTestProfile(t, target, getDefaultTestProfile())

	w := authedRequest(t, usersDispatcher(db), http.MethodGet, "/users/"+itoa(target.ID), nil, viewer)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	assert.Equal(t, "Test", resp["first_name"])

	// Unknown user
	w = authedRequest(t, usersDispatcher(db), http.MethodGet, "/users/999999999", nil, viewer)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMeSummaryWithoutProfile(t *testing.T) {
	defer cleanupTestData("prof1@test.com")
	u := createTestUser(t, "prof1@test.com", "password123")

	// /me works even before the profile row exists
	w := authedRequest(t, meHandler(db), http.MethodGet, "/me", nil, u)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	assert.Equal(t, "prof1@test.com", resp["email"])
	assert.Equal(t, "", resp["first_name"])

	// But the full card 404s until the profile is created
	w = authedRequest(t, meProfileHandler(db), http.MethodGet, "/me/profile", nil, u)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
