package main

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Friend-request state machine.
//
// TERMINOLOGY
// request: create pending, or auto-accept if the opposite pending exists
//          (mutual match). Rejected pairs are a hard stop.
// reject:  terminal, idempotent; rejecting an unknown pair records a
//          rejected row so the skip is remembered.

// POST /matchmaking/{id}/request
// Sends a friend request from the authenticated user to {id}.
// If the other side had already requested, both said yes: auto-accept.
func requestFriendHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// Expect: /matchmaking/{id}/request
		if len(parts) != 3 || parts[0] != "matchmaking" || parts[2] != "request" {
			http.NotFound(w, r)
			return
		}
		receiverID, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		me := r.Context().Value(userIDKey).(int)
		if receiverID == me {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		if exists, err := userHasProfile(db, receiverID); err != nil || !exists {
			if err != nil {
				log.Println("requestFriendHandler profile check error:", err)
			}
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		type response struct {
			Status       string `json:"status"`
			Match        bool   `json:"match"`
			Message      string `json:"message"`
			ConnectionID *int   `json:"connection_id,omitempty"`
		}
		var resp response
		wroteErr := false

		// All state changes happen inside one transaction: the row lock from
		// loadPairForUpdate plus the unordered-pair unique index make the
		// mutual-request race resolve to exactly one accepted row.
		txFn := func(tx *sql.Tx) error {
			row, err := loadPairForUpdate(tx, me, receiverID)
			if err != nil {
				return err
			}

			if row != nil {
				switch row.Status {
				case statusAccepted:
					resp.Status = statusAccepted
					resp.Match = true
					resp.Message = "Already friends"
					resp.ConnectionID = &row.ID
					return nil

				case statusPending:
					if row.ReceiverID == me {
						// They asked first and now we ask too: mutual match.
						if err := tx.QueryRow(`
							UPDATE friend_connections
							SET status = 'accepted', updated_at = NOW()
							WHERE id = $1
							RETURNING id
						`, row.ID).Scan(&resp.ConnectionID); err != nil {
							return err
						}
						resp.Status = statusAccepted
						resp.Match = true
						resp.Message = "It's a match! You're now friends!"
						return nil
					}
					// Our own earlier request is still waiting.
					resp.Status = statusPending
					resp.Match = false
					resp.Message = "Friend request already pending"
					resp.ConnectionID = &row.ID
					return nil

				case statusRejected:
					// Terminal: no new request may be created for this pair.
					writeError(w, http.StatusBadRequest, "rejected_pair")
					wroteErr = true
					return nil

				default:
					writeError(w, http.StatusConflict, "invalid_state")
					wroteErr = true
					return nil
				}
			}

			// No row yet: create a fresh pending request.
			if err := tx.QueryRow(`
				INSERT INTO friend_connections (requester_id, receiver_id, status)
				VALUES ($1, $2, 'pending')
				RETURNING id
			`, me, receiverID).Scan(&resp.ConnectionID); err != nil {
				return err
			}
			resp.Status = statusPending
			resp.Match = false
			resp.Message = "Friend request sent"
			return nil
		}

		err = withTx(r.Context(), db, txFn)
		if isUniqueViolation(err) {
			// Two simultaneous requests both saw no row and both inserted;
			// the unordered-pair index rejected ours after the other side
			// committed. Re-running now finds their pending row, so the
			// race resolves as a mutual match instead of an error.
			resp = response{}
			err = withTx(r.Context(), db, txFn)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("requestFriendHandler tx error:", err)
			return
		}
		if wroteErr {
			return // error already written inside the tx
		}

		friendRequestsTotal.WithLabelValues(resp.Status).Inc()
		if resp.Match && resp.Message != "Already friends" {
			mutualMatchesTotal.Inc()
			// Tell both parties right away.
			notifyHub.sendToUser(me, NotifyEvent{Type: "match", From: receiverID})
			notifyHub.sendToUser(receiverID, NotifyEvent{Type: "match", From: me})
		} else if resp.Status == statusPending && resp.Message == "Friend request sent" {
			notifyHub.sendToUser(receiverID, NotifyEvent{Type: "friend_request", From: me})
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (class 23505), i.e. we lost an insert race.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// POST /matchmaking/{id}/reject
// Rejects the pair (or skips a never-requested user). Terminal and
// idempotent: any existing row flips to rejected, a missing row is created
// rejected so the decision is remembered.
func rejectFriendHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "matchmaking" || parts[2] != "reject" {
			http.NotFound(w, r)
			return
		}
		receiverID, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		me := r.Context().Value(userIDKey).(int)
		if receiverID == me {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		if exists, err := userHasProfile(db, receiverID); err != nil || !exists {
			if err != nil {
				log.Println("rejectFriendHandler profile check error:", err)
			}
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		type response struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		var resp response

		txFn := func(tx *sql.Tx) error {
			row, err := loadPairForUpdate(tx, me, receiverID)
			if err != nil {
				return err
			}
			if row != nil {
				if _, err := tx.Exec(`
					UPDATE friend_connections
					SET status = 'rejected', updated_at = NOW()
					WHERE id = $1
				`, row.ID); err != nil {
					return err
				}
				resp.Status = statusRejected
				resp.Message = "Friend request rejected"
				return nil
			}
			// Remember the skip so this user is never surfaced again.
			if _, err := tx.Exec(`
				INSERT INTO friend_connections (requester_id, receiver_id, status)
				VALUES ($1, $2, 'rejected')
			`, me, receiverID); err != nil {
				return err
			}
			resp.Status = statusRejected
			resp.Message = "User skipped"
			return nil
		}

		err = withTx(r.Context(), db, txFn)
		if isUniqueViolation(err) {
			// Lost an insert race for the pair; the re-read flips the
			// winner's row to rejected instead.
			resp = response{}
			err = withTx(r.Context(), db, txFn)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("rejectFriendHandler tx error:", err)
			return
		}

		rejectionsTotal.Inc()
		writeJSON(w, http.StatusOK, resp)
	})
}

// GET /matchmaking/friends
// Lists accepted connections, resolving the other party as whichever end is
// not the authenticated user, with similarity reasons for display.
func friendsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
			SELECT CASE
				WHEN requester_id = $1 THEN receiver_id
				ELSE requester_id
			END AS friend_id
			FROM friend_connections
			WHERE (requester_id = $1 OR receiver_id = $1) AND status = 'accepted'
			ORDER BY updated_at DESC, id DESC
		`, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		var friendIDs []int
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err == nil {
				friendIDs = append(friendIDs, id)
			}
		}

		loaders := NewDataLoaders(db)
		viewerCards, err := loaders.loadCards(r.Context(), []int{userID})
		if err != nil || len(viewerCards) == 0 {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		viewer := viewerCards[0]

		cards, err := loaders.loadCards(r.Context(), friendIDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		friends := make([]MatchCard, 0, len(cards))
		for _, c := range cards {
			reasons := similarityReasons(viewer, c)
			if reasons == nil {
				reasons = []string{}
			}
			friends = append(friends, MatchCard{MatchProfile: c, Similarities: reasons})
		}
		writeJSON(w, http.StatusOK, map[string][]MatchCard{"friends": friends})
	})
}

// GET /matchmaking/requests
// Lists the user ids that have a pending request toward the authenticated
// user, newest first.
func friendRequestsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
			SELECT requester_id
			FROM friend_connections
			WHERE receiver_id = $1 AND status = 'pending'
			ORDER BY created_at DESC, id DESC
		`, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		requests := []int{}
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err == nil {
				requests = append(requests, id)
			}
		}

		writeJSON(w, http.StatusOK, map[string][]int{"requests": requests})
	})
}
