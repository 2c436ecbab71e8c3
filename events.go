package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

const (
	maxEventTitleLen       = 25
	maxEventDescriptionLen = 50
)

// Dispatcher for /events/* paths:
//
//	/events/{id}
//	/events/{id}/join
//	/events/{id}/leave
//	/events/{id}/attendees
//	/events/{id}/attendees/count
func eventsDispatcher(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[0] != "events" {
			http.NotFound(w, r)
			return
		}
		eventID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}

		switch {
		case len(parts) == 2:
			eventHandler(db, eventID).ServeHTTP(w, r)
		case len(parts) == 3 && parts[2] == "join":
			joinEventHandler(db, eventID).ServeHTTP(w, r)
		case len(parts) == 3 && parts[2] == "leave":
			leaveEventHandler(db, eventID).ServeHTTP(w, r)
		case len(parts) == 3 && parts[2] == "attendees":
			eventAttendeesHandler(db, eventID).ServeHTTP(w, r)
		case len(parts) == 4 && parts[2] == "attendees" && parts[3] == "count":
			eventAttendeeCountHandler(db, eventID).ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

// GET /events lists events, optionally filtered by ?city= and ?state=.
// POST /events creates one.
func eventsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listEvents(db, w, r)
		case http.MethodPost:
			createEvent(db, w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

func listEvents(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT id, title, description, creator_id, capacity, date, city, state, country, latitude, longitude
		FROM events
	`
	var conditions []string
	var args []interface{}
	if city := r.URL.Query().Get("city"); city != "" {
		args = append(args, city)
		conditions = append(conditions, "LOWER(COALESCE(city, '')) = LOWER($"+strconv.Itoa(len(args))+")")
	}
	if state := r.URL.Query().Get("state"); state != "" {
		args = append(args, state)
		conditions = append(conditions, "LOWER(COALESCE(state, '')) = LOWER($"+strconv.Itoa(len(args))+")")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := db.Query(query, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		events = append(events, ev)
	}
	writeJSON(w, http.StatusOK, map[string][]Event{"events": events})
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Capacity    *int64 `json:"capacity"`
	Date        string `json:"date"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

func validateEventRequest(req eventRequest) string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return "title_required"
	}
	if len(title) > maxEventTitleLen {
		return "title_too_long"
	}
	if len(req.Description) > maxEventDescriptionLen {
		return "description_too_long"
	}
	if req.Capacity != nil && *req.Capacity < 1 {
		return "invalid_capacity"
	}
	return ""
}

func createEvent(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if msg := validateEventRequest(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	creatorID := r.Context().Value(userIDKey).(int)

	var ev Event
	err := db.QueryRow(`
		INSERT INTO events (title, description, creator_id, capacity, date, city, state, country, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, strings.TrimSpace(req.Title), req.Description, creatorID, req.Capacity,
		req.Date, req.City, req.State, req.Country, req.Latitude, req.Longitude).Scan(&ev.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			writeError(w, http.StatusConflict, "title_exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		log.Println("Error creating event:", err)
		return
	}

	ev.Title = strings.TrimSpace(req.Title)
	ev.Description = req.Description
	ev.CreatorID = &creatorID
	ev.Capacity = req.Capacity
	ev.Date = req.Date
	ev.City = req.City
	ev.State = req.State
	ev.Country = req.Country
	ev.Latitude = req.Latitude
	ev.Longitude = req.Longitude
	writeJSON(w, http.StatusCreated, ev)
}

// GET/PUT/DELETE /events/{id}. Updates and deletes are creator-only.
func eventHandler(db *sql.DB, eventID int) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ev, err := loadEvent(db, eventID)
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "event_not_found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			writeJSON(w, http.StatusOK, ev)
		case http.MethodPut:
			updateEvent(db, eventID, w, r)
		case http.MethodDelete:
			deleteEvent(db, eventID, w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

func updateEvent(db *sql.DB, eventID int, w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if msg := validateEventRequest(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	userID := r.Context().Value(userIDKey).(int)

	res, err := db.Exec(`
		UPDATE events
		SET title = $1, description = $2, capacity = $3, date = $4,
		    city = $5, state = $6, country = $7, latitude = $8, longitude = $9
		WHERE id = $10 AND creator_id = $11
	`, strings.TrimSpace(req.Title), req.Description, req.Capacity, req.Date,
		req.City, req.State, req.Country, req.Latitude, req.Longitude, eventID, userID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			writeError(w, http.StatusConflict, "title_exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "event_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func deleteEvent(db *sql.DB, eventID int, w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int)
	res, err := db.Exec(`DELETE FROM events WHERE id = $1 AND creator_id = $2`, eventID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "event_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /events/{id}/join reserves a spot. The event row is locked so the
// capacity check and the attendance insert are atomic under concurrent joins.
func joinEventHandler(db *sql.DB, eventID int) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		wroteErr := false
		err := withTx(r.Context(), db, func(tx *sql.Tx) error {
			var capacity sql.NullInt64
			err := tx.QueryRow(`SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity)
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "event_not_found")
				wroteErr = true
				return nil
			}
			if err != nil {
				return err
			}

			var already bool
			err = tx.QueryRow(`
				SELECT EXISTS (
					SELECT 1 FROM event_attendance WHERE user_id = $1 AND event_id = $2
				)
			`, userID, eventID).Scan(&already)
			if err != nil {
				return err
			}
			if already {
				writeError(w, http.StatusConflict, "already_joined")
				wroteErr = true
				return nil
			}

			if capacity.Valid {
				var going int
				err = tx.QueryRow(`
					SELECT COUNT(*) FROM event_attendance
					WHERE event_id = $1 AND rsvp_status = TRUE
				`, eventID).Scan(&going)
				if err != nil {
					return err
				}
				if int64(going) >= capacity.Int64 {
					writeError(w, http.StatusBadRequest, "event_full")
					wroteErr = true
					return nil
				}
			}

			_, err = tx.Exec(`
				INSERT INTO event_attendance (user_id, event_id, rsvp_status)
				VALUES ($1, $2, TRUE)
			`, userID, eventID)
			return err
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error joining event:", err)
			return
		}
		if wroteErr {
			return
		}

		eventRSVPsTotal.Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
	})
}

// DELETE /events/{id}/leave
func leaveEventHandler(db *sql.DB, eventID int) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		res, err := db.Exec(`
			DELETE FROM event_attendance WHERE user_id = $1 AND event_id = $2
		`, userID, eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			writeError(w, http.StatusNotFound, "not_attending")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
	})
}

// GET /events/{id}/attendees returns the profile cards of everyone going.
func eventAttendeesHandler(db *sql.DB, eventID int) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.Query(`
			SELECT user_id FROM event_attendance
			WHERE event_id = $1 AND rsvp_status = TRUE
			ORDER BY user_id
		`, eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		var userIDs []int
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			userIDs = append(userIDs, id)
		}

		cards, err := NewDataLoaders(db).loadCards(r.Context(), userIDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]*MatchProfile{"attendees": cards})
	})
}

// GET /events/{id}/attendees/count
func eventAttendeeCountHandler(db *sql.DB, eventID int) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		var count int
		err := db.QueryRow(`
			SELECT COUNT(*) FROM event_attendance
			WHERE event_id = $1 AND rsvp_status = TRUE
		`, eventID).Scan(&count)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
	})
}

// GET /me/events lists the events the caller has joined.
func meEventsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)
		rows, err := db.Query(`
			SELECT e.id, e.title, e.description, e.creator_id, e.capacity, e.date,
			       e.city, e.state, e.country, e.latitude, e.longitude
			FROM events e
			JOIN event_attendance a ON a.event_id = e.id
			WHERE a.user_id = $1 AND a.rsvp_status = TRUE
			ORDER BY e.id
		`, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		events := []Event{}
		for rows.Next() {
			ev, err := scanEvent(rows)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			events = append(events, ev)
		}
		writeJSON(w, http.StatusOK, map[string][]Event{"events": events})
	})
}

func loadEvent(db *sql.DB, eventID int) (Event, error) {
	row := db.QueryRow(`
		SELECT id, title, description, creator_id, capacity, date, city, state, country, latitude, longitude
		FROM events WHERE id = $1
	`, eventID)
	return scanEventRow(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(rows *sql.Rows) (Event, error) {
	return scanEventRow(rows)
}

func scanEventRow(s rowScanner) (Event, error) {
	var ev Event
	var creatorID sql.NullInt64
	var capacity sql.NullInt64
	var description, date, city, state, country, lat, lon sql.NullString
	err := s.Scan(&ev.ID, &ev.Title, &description, &creatorID, &capacity,
		&date, &city, &state, &country, &lat, &lon)
	if err != nil {
		return ev, err
	}
	if creatorID.Valid {
		v := int(creatorID.Int64)
		ev.CreatorID = &v
	}
	if capacity.Valid {
		v := capacity.Int64
		ev.Capacity = &v
	}
	ev.Description = description.String
	ev.Date = date.String
	ev.City = city.String
	ev.State = state.String
	ev.Country = country.String
	ev.Latitude = lat.String
	ev.Longitude = lon.String
	return ev, nil
}
