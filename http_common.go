package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// withTx wraps a function in a database transaction.
// - Ensures COMMIT on success, ROLLBACK on errors or panics.
// - Keeps handler bodies tiny and all state changes atomic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		// If the callback panics, make sure to rollback before re-panicking
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ConnectionRow is one friend_connections record between two users.
type ConnectionRow struct {
	ID          int
	RequesterID int
	ReceiverID  int
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Connection statuses. Rejected is terminal: a rejected pair can never
// request again.
const (
	statusPending  = "pending"
	statusAccepted = "accepted"
	statusRejected = "rejected"
)

// loadPairForUpdate returns the connection row between two users (in EITHER
// direction) and takes a row lock (`FOR UPDATE`) so no other concurrent
// request can modify it until our transaction finishes. The unique index on
// the unordered pair guarantees at most one row exists.
//   - Returns (nil, nil) if no row exists yet.
func loadPairForUpdate(tx *sql.Tx, a, b int) (*ConnectionRow, error) {
	row := tx.QueryRow(`
		SELECT id, requester_id, receiver_id, status, created_at, updated_at
		FROM friend_connections
		WHERE (requester_id = $1 AND receiver_id = $2)
		   OR (requester_id = $2 AND receiver_id = $1)
		LIMIT 1
		FOR UPDATE
	`, a, b)

	var c ConnectionRow
	if err := row.Scan(&c.ID, &c.RequesterID, &c.ReceiverID, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// userHasProfile reports whether the user exists and has completed a profile.
// Matchmaking and events only ever surface users with profiles.
func userHasProfile(db *sql.DB, userID int) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1
			FROM users u
			JOIN profiles p ON p.user_id = u.id
			WHERE u.id = $1
		)
	`, userID).Scan(&exists)
	return exists, err
}
