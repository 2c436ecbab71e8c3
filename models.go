package main

// Location is a shared place record; many profiles can point at the same row.
type Location struct {
	ID        int      `json:"id"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Interest is a named tag shared across users. Globally unique by name,
// created lazily when a profile first references the name.
type Interest struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MatchProfile carries everything the similarity scorer looks at for one
// user: display attributes plus location and the resolved interest set.
type MatchProfile struct {
	UserID      int        `json:"user_id"`
	Email       string     `json:"email,omitempty"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Age         *int       `json:"age,omitempty"`
	Photo       string     `json:"photo,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	TravelStyle string     `json:"travel_style,omitempty"`
	Languages   string     `json:"languages,omitempty"`
	Location    *Location  `json:"location,omitempty"`
	Interests   []Interest `json:"interests"`
}

// Event is a meetup with optional capacity. Attendance lives in
// event_attendance keyed by (user, event).
type Event struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatorID   *int   `json:"creator_id,omitempty"`
	Capacity    *int64 `json:"capacity,omitempty"`
	Date        string `json:"date,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	Latitude    string `json:"latitude,omitempty"`
	Longitude   string `json:"longitude,omitempty"`
}
