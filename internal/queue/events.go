// Package queue publishes finished leaderboard snapshots to RabbitMQ.
package queue

import (
	"time"

	"strava-leaderboard/internal/service"
)

// DefaultQueue is where snapshots are published
const DefaultQueue = "leaderboard.published"

// LeaderboardPublishedEvent is the message body for one snapshot
type LeaderboardPublishedEvent struct {
	SnapshotID  string          `json:"snapshot_id"`
	PublishedAt time.Time       `json:"published_at"`
	Since       string          `json:"since"`
	Policy      string          `json:"failure_policy"`
	Standings   []StandingEvent `json:"standings"`
	Failed      []string        `json:"failed,omitempty"`
}

// StandingEvent is one ranked athlete
type StandingEvent struct {
	Rank      int     `json:"rank"`
	AthleteID int64   `json:"athlete_id"`
	Name      string  `json:"name"`
	Calories  float64 `json:"calories"`
	Missing   int     `json:"missing"`
}

// NewLeaderboardPublishedEvent builds the event for snap
func NewLeaderboardPublishedEvent(snap *service.Snapshot, at time.Time) LeaderboardPublishedEvent {
	ev := LeaderboardPublishedEvent{
		SnapshotID:  snap.ID,
		PublishedAt: at.UTC(),
		Since:       snap.Since.Format(time.DateOnly),
		Policy:      string(snap.Policy),
		Standings:   make([]StandingEvent, 0, len(snap.Entries)),
	}
	for _, e := range snap.Entries {
		ev.Standings = append(ev.Standings, StandingEvent{
			Rank:      e.Rank,
			AthleteID: e.AthleteID,
			Name:      e.Name,
			Calories:  e.Total,
			Missing:   e.Missing,
		})
	}
	for _, f := range snap.Failures {
		ev.Failed = append(ev.Failed, f.User)
	}
	return ev
}
