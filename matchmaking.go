package main

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
)

// MatchCard is one entry in the potential-matches / friends listings: the
// candidate's full profile plus the similarity reasons against the viewer.
type MatchCard struct {
	*MatchProfile
	Similarities []string `json:"similarities"`
}

// A dispatcher router function for all /matchmaking/... requests
func matchmakingDispatcher(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[0] != "matchmaking" {
			http.NotFound(w, r)
			return
		}

		if len(parts) == 2 {
			switch parts[1] {
			case "potential-matches":
				potentialMatchesHandler(db).ServeHTTP(w, r)
			case "friends":
				friendsHandler(db).ServeHTTP(w, r)
			case "requests":
				friendRequestsHandler(db).ServeHTTP(w, r)
			default:
				http.NotFound(w, r)
			}
			return
		}

		if len(parts) == 3 {
			// GET /matchmaking/users/{id}
			if parts[1] == "users" {
				matchmakingUserHandler(db).ServeHTTP(w, r)
				return
			}
			// POST /matchmaking/{id}/(request|reject)
			switch parts[2] {
			case "request":
				requestFriendHandler(db).ServeHTTP(w, r)
			case "reject":
				rejectFriendHandler(db).ServeHTTP(w, r)
			default:
				http.NotFound(w, r)
			}
			return
		}

		http.NotFound(w, r)
	}
}

// candidateIDs returns the users eligible to be shown to userID as potential
// matches. Excluded: the user themselves, users without a profile, and any
// pair already decided (accepted or rejected in either direction, or pending
// where the viewer was the requester). A pending request *toward* the viewer
// keeps the requester visible so the viewer can respond.
func candidateIDs(db *sql.DB, userID int) ([]int, error) {
	rows, err := db.Query(`
		SELECT p.user_id
		FROM profiles p
		WHERE p.user_id <> $1
		  AND NOT EXISTS (
			  SELECT 1
			  FROM friend_connections c
			  WHERE ((c.requester_id = $1 AND c.receiver_id = p.user_id)
				  OR (c.requester_id = p.user_id AND c.receiver_id = $1))
				AND (c.status IN ('accepted', 'rejected')
				  OR (c.status = 'pending' AND c.requester_id = $1))
		  )
		ORDER BY p.user_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// isCandidate reports whether targetID is currently in userID's match pool.
func isCandidate(db *sql.DB, userID, targetID int) (bool, error) {
	ids, err := candidateIDs(db, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == targetID {
			return true, nil
		}
	}
	return false, nil
}

// GET /matchmaking/potential-matches
// Returns match cards for every candidate sharing at least one similarity
// with the authenticated user.
func potentialMatchesHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		loaders := NewDataLoaders(db)
		viewerCards, err := loaders.loadCards(r.Context(), []int{userID})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if len(viewerCards) == 0 {
			// No profile yet: nothing to match against
			writeError(w, http.StatusForbidden, "incomplete_profile")
			return
		}
		viewer := viewerCards[0]

		ids, err := candidateIDs(db, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		cards, err := loaders.loadCards(r.Context(), ids)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		matches := make([]MatchCard, 0, len(cards))
		for _, c := range cards {
			reasons := similarityReasons(viewer, c)
			if len(reasons) == 0 {
				continue
			}
			matches = append(matches, MatchCard{MatchProfile: c, Similarities: reasons})
		}

		potentialMatchesServed.Add(float64(len(matches)))
		writeJSON(w, http.StatusOK, map[string][]MatchCard{"matches": matches})
	})
}

// GET /matchmaking/users/{id}
// Detailed card of one user. Only visible when a pending/accepted connection
// exists or the target is currently in the viewer's match pool.
func matchmakingUserHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "matchmaking" || parts[1] != "users" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		if userID != targetID {
			allowed, _ := hasPendingOrAccepted(db, userID, targetID)
			if !allowed {
				allowed, _ = isCandidate(db, userID, targetID)
			}
			if !allowed {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
		}

		cards, err := NewDataLoaders(db).loadCards(r.Context(), []int{targetID})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if len(cards) == 0 {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeJSON(w, http.StatusOK, cards[0])
	})
}

// Lightweight relationship check (pending/accepted)
func hasPendingOrAccepted(db *sql.DB, a, b int) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM friend_connections
			WHERE ((requester_id = $1 AND receiver_id = $2) OR (requester_id = $2 AND receiver_id = $1))
			  AND status IN ('pending', 'accepted')
		)`, a, b).Scan(&exists)
	return exists, err
}
