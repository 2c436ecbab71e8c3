package main

import (
	"database/sql"
	"log"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// Test helper structures and types
type TestUser struct {
	ID       int
	Email    string
	Password string
	Token    string
}

type TestLocation struct {
	City      string   `json:"city"`
	State     string   `json:"state"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type TestProfile struct {
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	Age         *int          `json:"age"`
	Bio         string        `json:"bio"`
	TravelStyle string        `json:"travel_style"`
	Languages   string        `json:"languages"`
	Location    *TestLocation `json:"location"`
}

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=urbane password=urbane dbname=urbanedb_test sslmode=disable"
	}

	var err error
	db, err = sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("Error connecting to the database:", err)
	}
	defer db.Close()

	if err := runMigrations(db); err != nil {
		log.Fatal("Error running migrations:", err)
	}

	m.Run()
}
