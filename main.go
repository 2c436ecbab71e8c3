package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
)

// JWT secret from environment variable or fallback
func getJWTSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("your_secret_key_please_change_in_production")
}

var jwtSecret = getJWTSecret()

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	jwtSecret = getJWTSecret()

	initDB()

	mux := http.NewServeMux()

	// Make sure that the upload directory for photos exists
	_ = os.MkdirAll(photoRoot, 0o755)

	// Core auth & user endpoints
	mux.Handle("/register", registerHandler(db))
	mux.Handle("/login", loginHandler(db))
	mux.Handle("/me", meHandler(db))
	mux.Handle("/me/profile", meProfileHandler(db))
	mux.Handle("/me/interests", meInterestsHandler(db))
	mux.Handle("/me/events", meEventsHandler(db))

	// Matchmaking: candidate pool, friends, requests, per-target actions
	mux.Handle("/matchmaking/", matchmakingDispatcher(db))

	// Interest catalog
	mux.Handle("/interests", interestsHandler(db))

	// Users dispatcher (summary, profile, interests)
	mux.Handle("/users/", usersDispatcher(db))

	// Events & RSVPs
	mux.Handle("/events", eventsHandler(db))
	mux.Handle("/events/", eventsDispatcher(db))

	mux.Handle("/me/photo", myPhotoHandler(db))     // POST & DELETE
	mux.Handle("/photos/", getUserPhotoHandler(db)) // GET /photos/{id}

	// WebSocket notifications (friend requests, matches)
	mux.Handle("/ws/notifications", wsNotificationsHandler())

	// Health check endpoint for Docker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus scrape endpoint
	mux.Handle("/metrics", metricsHandler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Default().Println("Starting Urbane backend on port " + port + "...")
	http.ListenAndServe(":"+port, withCORS(mux))
}
