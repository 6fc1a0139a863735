package service

import (
	"sort"
	"time"
)

// Entry is one ranked athlete
type Entry struct {
	Rank       int     `json:"rank"`
	AthleteID  int64   `json:"athlete_id"`
	Name       string  `json:"name"`
	Total      float64 `json:"total_calories"`
	Missing    int     `json:"missing"`
	Activities int     `json:"activities"`
	// Failed is set when the entry stands in for an athlete whose cycle failed
	Failed bool `json:"failed,omitempty"`

	order int // registry position, breaks ties
}

// Failure records why an athlete is missing from (or zeroed in) a snapshot
type Failure struct {
	User  string `json:"user"`
	Name  string `json:"name"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Snapshot is the outcome of one leaderboard cycle
type Snapshot struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Since      time.Time     `json:"since"`
	Policy     FailurePolicy `json:"failure_policy"`
	Entries    []Entry       `json:"entries"`
	Failures   []Failure     `json:"failures,omitempty"`
}

// Leader returns the top entry, if any
func (s *Snapshot) Leader() (Entry, bool) {
	if s == nil || len(s.Entries) == 0 {
		return Entry{}, false
	}
	return s.Entries[0], true
}

// Rank orders entries by total, highest first. Equal totals keep registry
// order. Ranks are 1-based positions.
func Rank(entries []Entry) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].order < ranked[j].order
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
