package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// Dispatcher for /users/* to route summary/profile/interests
func usersDispatcher(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[0] != "users" {
			http.NotFound(w, r)
			return
		}
		if len(parts) == 2 {
			userHandler(db).ServeHTTP(w, r)
			return
		}
		if len(parts) == 3 {
			switch parts[2] {
			case "profile":
				userProfileHandler(db).ServeHTTP(w, r)
			case "interests":
				userInterestsHandler(db).ServeHTTP(w, r)
			default:
				http.NotFound(w, r)
			}
			return
		}
		http.NotFound(w, r)
	}
}

// GET /users/{id}
// Lightweight summary visible to any authenticated user.
func userHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "users" {
			http.NotFound(w, r)
			return
		}
		userID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}

		var email string
		var firstName, lastName, photo sql.NullString
		err = db.QueryRow(`
			SELECT u.email, p.first_name, p.last_name, p.photo
			FROM users u
			LEFT JOIN profiles p ON p.user_id = u.id
			WHERE u.id = $1
		`, userID).Scan(&email, &firstName, &lastName, &photo)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":         userID,
			"email":      email,
			"first_name": firstName.String,
			"last_name":  lastName.String,
			"photo":      photo.String,
		})
	})
}

// GET /users/{id}/profile
// Full profile card. Only visible when a pending/accepted connection exists
// or the target is currently in the viewer's match pool.
func userProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "users" || parts[2] != "profile" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		requesterID := r.Context().Value(userIDKey).(int)

		if requesterID != targetID {
			allowed, _ := hasPendingOrAccepted(db, requesterID, targetID)
			if !allowed {
				allowed, _ = isCandidate(db, requesterID, targetID)
			}
			if !allowed {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
		}

		cards, err := NewDataLoaders(db).loadCards(r.Context(), []int{targetID})
		if err != nil || len(cards) == 0 {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeJSON(w, http.StatusOK, cards[0])
	})
}

// GET /users/{id}/interests
func userInterestsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "users" || parts[2] != "interests" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}

		if exists, err := userExists(db, targetID); err != nil || !exists {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		interests, err := userInterests(db, targetID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]Interest{"interests": interests})
	})
}

func userExists(db *sql.DB, userID int) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

func meHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)
		var email string
		var firstName, lastName, photo sql.NullString
		err := db.QueryRow(`
			SELECT u.email, p.first_name, p.last_name, p.photo
			FROM users u
			LEFT JOIN profiles p ON p.user_id = u.id
			WHERE u.id = $1
		`, userID).Scan(&email, &firstName, &lastName, &photo)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":         userID,
			"email":      email,
			"first_name": firstName.String,
			"last_name":  lastName.String,
			"photo":      photo.String,
		})
	})
}

// GET /me/profile  - own full card
// POST/PATCH /me/profile - create or update the profile (owner only)
func meProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			userID := r.Context().Value(userIDKey).(int)
			cards, err := NewDataLoaders(db).loadCards(r.Context(), []int{userID})
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			if len(cards) == 0 {
				writeError(w, http.StatusNotFound, "profile_not_found")
				return
			}
			writeJSON(w, http.StatusOK, cards[0])
		case http.MethodPost, http.MethodPatch:
			saveProfileHandler(db).ServeHTTP(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

func saveProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		type LocationRequest struct {
			City      string   `json:"city"`
			State     string   `json:"state"`
			Country   string   `json:"country"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		type ProfileRequest struct {
			FirstName   string           `json:"first_name"`
			LastName    string           `json:"last_name"`
			Age         *int             `json:"age"`
			Bio         string           `json:"bio"`
			TravelStyle string           `json:"travel_style"`
			Languages   string           `json:"languages"`
			Location    *LocationRequest `json:"location"`
			Interests   []string         `json:"interests"`
		}
		var req ProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		err := withTx(r.Context(), db, func(tx *sql.Tx) error {
			var locationID *int
			if req.Location != nil {
				id, err := resolveLocation(tx, req.Location.City, req.Location.State, req.Location.Country,
					req.Location.Latitude, req.Location.Longitude)
				if err != nil {
					return err
				}
				locationID = &id
			}

			_, err := tx.Exec(`
				INSERT INTO profiles (
					user_id, first_name, last_name, age, bio, travel_style, languages, location_id
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8
				)
				ON CONFLICT (user_id) DO UPDATE SET
					first_name = EXCLUDED.first_name,
					last_name = EXCLUDED.last_name,
					age = EXCLUDED.age,
					bio = EXCLUDED.bio,
					travel_style = EXCLUDED.travel_style,
					languages = EXCLUDED.languages,
					location_id = EXCLUDED.location_id
			`, userID, req.FirstName, req.LastName, req.Age, req.Bio, req.TravelStyle, req.Languages, locationID)
			if err != nil {
				return err
			}

			// An interests field, when present, replaces the whole set.
			if req.Interests != nil {
				if _, err := tx.Exec(`DELETE FROM user_interests WHERE user_id = $1`, userID); err != nil {
					return err
				}
				for _, name := range req.Interests {
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
				}
			}
			return nil
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "profile_save_error")
			log.Println("Error saving profile:", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// resolveLocation finds the shared location row for (city, state, country),
// creating it when missing. Coordinates are set on first creation only.
func resolveLocation(tx *sql.Tx, city, state, country string, lat, lon *float64) (int, error) {
	var id int
	err := tx.QueryRow(`
		SELECT id FROM locations
		WHERE LOWER(COALESCE(city, '')) = LOWER($1)
		  AND LOWER(COALESCE(state, '')) = LOWER($2)
		  AND LOWER(COALESCE(country, '')) = LOWER($3)
		LIMIT 1
	`, city, state, country).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	err = tx.QueryRow(`
		INSERT INTO locations (city, state, country, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, city, state, country, lat, lon).Scan(&id)
	return id, err
}
