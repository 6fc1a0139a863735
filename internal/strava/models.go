package strava

import (
	"strings"
	"time"
)

// ActivitySummary is one entry of the /athlete/activities listing
type ActivitySummary struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	SportType      string    `json:"sport_type"`
	Distance       float64   `json:"distance"`    // meters
	MovingTime     int       `json:"moving_time"` // seconds
	StartDateLocal time.Time `json:"start_date_local"`
}

// ActivityDetail is the /activities/{id} record. Calories is nil when Strava
// has no estimate for the activity, which is not the same as zero.
type ActivityDetail struct {
	ActivitySummary
	Calories    *float64 `json:"calories"`
	Description string   `json:"description"`
}

// HasCalories reports whether the detail carries a calorie value
func (d *ActivityDetail) HasCalories() bool {
	return d != nil && d.Calories != nil
}

// Athlete is the authenticated athlete profile (/athlete, or the "athlete"
// object embedded in token responses)
type Athlete struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// FullName joins first and last name
func (a Athlete) FullName() string {
	return strings.TrimSpace(a.Firstname + " " + a.Lastname)
}
