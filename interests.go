package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// GET /interests
// Lists every interest tag.
func interestsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}

		rows, err := db.Query(`SELECT id, name FROM interests ORDER BY name`)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		interests := []Interest{}
		for rows.Next() {
			var in Interest
			if err := rows.Scan(&in.ID, &in.Name); err == nil {
				interests = append(interests, in)
			}
		}
		writeJSON(w, http.StatusOK, map[string][]Interest{"interests": interests})
	})
}

// upsertInterest resolves an interest name to its stable id, creating the
// tag if it doesn't exist yet. The ON CONFLICT dance keeps the id stable
// under concurrent first references to the same name.
func upsertInterest(tx *sql.Tx, name string) (int, error) {
	var id int
	err := tx.QueryRow(`
		INSERT INTO interests (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&id)
	return id, err
}

// POST /me/interests
// Replaces the authenticated user's interest set with the given names,
// lazily creating tags that don't exist yet.
func meInterestsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		var names []string
		if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		assigned := []Interest{}
		err := withTx(r.Context(), db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(`DELETE FROM user_interests WHERE user_id = $1`, userID); err != nil {
				return err
			}
			for _, name := range names {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				id, err := upsertInterest(tx, name)
				if err != nil {
					return err
				}
				if _, err := tx.Exec(`
					INSERT INTO user_interests (user_id, interest_id)
					VALUES ($1, $2)
					ON CONFLICT DO NOTHING
				`, userID, id); err != nil {
					return err
				}
				assigned = append(assigned, Interest{ID: id, Name: name})
			}
			return nil
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "interests_save_error")
			log.Println("meInterestsHandler tx error:", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string][]Interest{"interests": assigned})
	})
}

// userInterests loads the interest set for one user.
func userInterests(db *sql.DB, userID int) ([]Interest, error) {
	rows, err := db.Query(`
		SELECT i.id, i.name
		FROM user_interests ui
		JOIN interests i ON i.id = ui.interest_id
		WHERE ui.user_id = $1
		ORDER BY i.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	interests := []Interest{}
	for rows.Next() {
		var in Interest
		if err := rows.Scan(&in.ID, &in.Name); err != nil {
			return nil, err
		}
		interests = append(interests, in)
	}
	return interests, rows.Err()
}
