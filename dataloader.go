package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaders batches the per-user lookups the match-card assembly needs so
// a page of candidates costs two queries instead of 2N.
type DataLoaders struct {
	ProfileLoader   *dataloader.Loader[int, *MatchProfile]
	InterestsLoader *dataloader.Loader[int, []Interest]
}

// NewDataLoaders creates fresh dataloaders bound to the database connection.
// Loaders are per-request; the short wait window collects keys issued while
// a handler iterates its candidate list.
func NewDataLoaders(db *sql.DB) *DataLoaders {
	return &DataLoaders{
		ProfileLoader:   dataloader.NewBatchedLoader(profileBatchFn(db), dataloader.WithWait[int, *MatchProfile](2*time.Millisecond)),
		InterestsLoader: dataloader.NewBatchedLoader(interestsBatchFn(db), dataloader.WithWait[int, []Interest](2*time.Millisecond)),
	}
}

// loadCards resolves full match profiles (profile + location + interests)
// for a set of user ids, preserving input order. Users without a profile
// row are skipped.
func (dl *DataLoaders) loadCards(ctx context.Context, userIDs []int) ([]*MatchProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	profileThunks := make([]func() (*MatchProfile, error), len(userIDs))
	interestThunks := make([]func() ([]Interest, error), len(userIDs))
	for i, id := range userIDs {
		profileThunks[i] = dl.ProfileLoader.Load(ctx, id)
		interestThunks[i] = dl.InterestsLoader.Load(ctx, id)
	}

	cards := make([]*MatchProfile, 0, len(userIDs))
	for i := range userIDs {
		p, err := profileThunks[i]()
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		ins, err := interestThunks[i]()
		if err != nil {
			return nil, err
		}
		if ins == nil {
			ins = []Interest{}
		}
		p.Interests = ins
		cards = append(cards, p)
	}
	return cards, nil
}

// profileBatchFn loads profiles (with email and location) for a key batch.
func profileBatchFn(db *sql.DB) dataloader.BatchFunc[int, *MatchProfile] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*MatchProfile] {
		results := make([]*dataloader.Result[*MatchProfile], len(keys))
		keyMap := make(map[int]int, len(keys)) // userID -> index in results
		for i, key := range keys {
			keyMap[key] = i
			results[i] = &dataloader.Result[*MatchProfile]{}
		}
		if len(keys) == 0 {
			return results
		}

		placeholders := make([]string, len(keys))
		args := make([]interface{}, len(keys))
		for i, key := range keys {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = key
		}

		query := fmt.Sprintf(`
			SELECT p.user_id, u.email, p.first_name, p.last_name, p.age, p.photo,
			       p.bio, p.travel_style, p.languages,
			       l.id, l.city, l.state, l.country, l.latitude, l.longitude
			FROM profiles p
			JOIN users u ON u.id = p.user_id
			LEFT JOIN locations l ON l.id = p.location_id
			WHERE p.user_id IN (%s)
		`, strings.Join(placeholders, ", "))

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		for rows.Next() {
			var p MatchProfile
			var firstName, lastName, photo, bio, travelStyle, languages sql.NullString
			var age sql.NullInt64
			var locID sql.NullInt64
			var locCity, locState, locCountry sql.NullString
			var locLat, locLon sql.NullFloat64

			err := rows.Scan(
				&p.UserID, &p.Email, &firstName, &lastName, &age, &photo,
				&bio, &travelStyle, &languages,
				&locID, &locCity, &locState, &locCountry, &locLat, &locLon,
			)
			if err != nil {
				for i := range results {
					if results[i].Data == nil && results[i].Error == nil {
						results[i].Error = err
					}
				}
				return results
			}

			p.FirstName = firstName.String
			p.LastName = lastName.String
			p.Photo = photo.String
			p.Bio = bio.String
			p.TravelStyle = travelStyle.String
			p.Languages = languages.String
			if age.Valid {
				v := int(age.Int64)
				p.Age = &v
			}
			if locID.Valid {
				loc := &Location{
					ID:      int(locID.Int64),
					City:    locCity.String,
					State:   locState.String,
					Country: locCountry.String,
				}
				if locLat.Valid {
					loc.Latitude = &locLat.Float64
				}
				if locLon.Valid {
					loc.Longitude = &locLon.Float64
				}
				p.Location = loc
			}

			if idx, ok := keyMap[p.UserID]; ok {
				results[idx].Data = &p
			}
		}

		return results
	}
}

// interestsBatchFn loads interest sets for a key batch.
func interestsBatchFn(db *sql.DB) dataloader.BatchFunc[int, []Interest] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[[]Interest] {
		results := make([]*dataloader.Result[[]Interest], len(keys))
		keyMap := make(map[int]int, len(keys))
		for i, key := range keys {
			keyMap[key] = i
			results[i] = &dataloader.Result[[]Interest]{Data: []Interest{}}
		}
		if len(keys) == 0 {
			return results
		}

		placeholders := make([]string, len(keys))
		args := make([]interface{}, len(keys))
		for i, key := range keys {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = key
		}

		query := fmt.Sprintf(`
			SELECT ui.user_id, i.id, i.name
			FROM user_interests ui
			JOIN interests i ON i.id = ui.interest_id
			WHERE ui.user_id IN (%s)
			ORDER BY i.name
		`, strings.Join(placeholders, ", "))

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		for rows.Next() {
			var userID int
			var in Interest
			if err := rows.Scan(&userID, &in.ID, &in.Name); err != nil {
				for i := range results {
					if results[i].Error == nil {
						results[i].Error = err
					}
				}
				return results
			}
			if idx, ok := keyMap[userID]; ok {
				results[idx].Data = append(results[idx].Data, in)
			}
		}

		return results
	}
}
