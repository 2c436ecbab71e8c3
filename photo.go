package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const photoRoot = "./uploads/photos"

// POST /me/photo  (multipart form, field name: "file")
// Or redirect to removePhoto if method is DELETE
func myPhotoHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {

		me := r.Context().Value(userIDKey).(int)

		// Remove photo if method is DELETE
		if r.Method == http.MethodDelete {
			if err := removePhoto(db, me); err != nil {
				http.Error(w, "remove_failed", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method_not_allowed", http.StatusMethodNotAllowed)
			return
		}

		// Limit to ~3MB
		r.Body = http.MaxBytesReader(w, r.Body, 3<<20)
		if err := r.ParseMultipartForm(4 << 20); err != nil {
			http.Error(w, "file_too_large_or_missing", http.StatusRequestEntityTooLarge)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing_file", http.StatusBadRequest)
			return
		}
		defer f.Close()

		// Sniff MIME from the first bytes
		head := make([]byte, 512)
		n, _ := f.Read(head)
		ctype := http.DetectContentType(head[:n])
		if ctype != "image/jpeg" {
			http.Error(w, "only_jpeg_allowed", http.StatusBadRequest)
			return
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			http.Error(w, "seek_failed", http.StatusInternalServerError)
			return
		}

		// Make sure the directory exists
		if err := os.MkdirAll(photoRoot, 0o755); err != nil {
			http.Error(w, "mkdir_failed", http.StatusInternalServerError)
			return
		}

		// Random name so a re-upload busts stale caches of the old file.
		filename := uuid.NewString() + ".jpg"
		dst := filepath.Join(photoRoot, filename)
		tmp := dst + ".tmp"

		out, err := os.Create(tmp)
		if err != nil {
			http.Error(w, "save_failed", http.StatusInternalServerError)
			return
		}
		if _, err := io.Copy(out, f); err != nil {
			out.Close()
			http.Error(w, "save_failed", http.StatusInternalServerError)
			return
		}
		out.Close()
		if err := os.Rename(tmp, dst); err != nil {
			http.Error(w, "save_failed", http.StatusInternalServerError)
			return
		}

		// Swap the filename in the database and drop the previous file.
		old, _ := getPhotoFilename(db, me)
		res, err := db.Exec(`
			UPDATE profiles
			SET photo = $1 WHERE user_id = $2
		`, filename, me)
		if err != nil {
			// If the database fails, leave the file but report the error.
			http.Error(w, "db_update_failed", http.StatusInternalServerError)
			return
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			// The profile row has not been initialized yet.
			// Remove the file
			_ = os.Remove(dst)
			http.Error(w, "profile_not_initialized", http.StatusConflict)
			return
		}
		if old != "" && old != filename {
			_ = os.Remove(filepath.Join(photoRoot, filepath.Base(old)))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ok":    true,
			"photo": filename,
		})
	})
}

// GET /photos/{id}
// Only show the requesting user OR a pending/accepted/candidate relationship
func getUserPhotoHandler(db *sql.DB) http.HandlerFunc {

	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method_not_allowed", http.StatusMethodNotAllowed)
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// /photos/{id}
		if len(parts) != 2 || parts[0] != "photos" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}

		me := r.Context().Value(userIDKey).(int)

		// Own picture ok. Otherwise a pending/accepted/candidate relationship must exist.
		if me != targetID {
			ok, _ := hasPendingOrAccepted(db, me, targetID)

			// A user still in the match pool is also viewable
			if !ok {
				ok, _ = isCandidate(db, me, targetID)
			}
			if !ok {
				// 404 so that the file existence is not revealed to bad actors
				http.NotFound(w, r)
				return
			}
		}

		// Read the filename from the database
		filename, err := getPhotoFilename(db, targetID)
		var path string
		var contentType string

		if err != nil {
			// No custom photo filename in database, use placeholder
			filename = "photo_placeholder.png"
			path = filepath.Join(photoRoot, filename)
			contentType = "image/png"
		} else {
			// Check if the custom file actually exists
			path = filepath.Join(photoRoot, filepath.Base(filename))
			if _, err := os.Stat(path); err != nil {
				// Custom file doesn't exist, fall back to placeholder
				filename = "photo_placeholder.png"
				path = filepath.Join(photoRoot, filename)
				contentType = "image/png"
			} else {
				contentType = "image/jpeg"
				if strings.HasSuffix(filename, ".png") {
					contentType = "image/png"
				}
			}
		}

		// Final check: make sure the file we're about to serve exists
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", contentType)
		// Light cache - busted in frontend ?ts=timestamp
		w.Header().Set("Cache-Control", "private, max-age=3600")
		http.ServeFile(w, r, path)
	})
}

func getPhotoFilename(db *sql.DB, userID int) (string, error) {
	var fn sql.NullString
	err := db.QueryRow(`SELECT photo FROM profiles WHERE user_id = $1`, userID).Scan(&fn)
	if err != nil {
		return "", err
	}
	if !fn.Valid || strings.TrimSpace(fn.String) == "" {
		return "", errors.New("no_photo")
	}
	return fn.String, nil
}

func removePhoto(db *sql.DB, userID int) error {
	filename, err := getPhotoFilename(db, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No profile row; nothing to remove
			return nil
		}
		if err.Error() == "no_photo" {
			return nil
		}
		return fmt.Errorf("error reading current photo filename: %w", err)
	}
	if filename != "" {
		// Protecting the path. Only using basename to avoid injection of ../ etc.
		fullPath := filepath.Join(photoRoot, filepath.Base(filename))
		if rmErr := os.Remove(fullPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("error removing photo file %q: %w", fullPath, rmErr)
		}
	}

	_, err = db.Exec(`UPDATE profiles SET photo = NULL WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("error clearing photo path in DB: %w", err)
	}
	return nil
}
