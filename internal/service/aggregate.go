package service

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"strava-leaderboard/internal/strava"
)

// DetailFetcher fetches one activity's detail record
type DetailFetcher interface {
	ActivityDetail(ctx context.Context, accessToken string, activityID int64) (*strava.ActivityDetail, error)
}

// Tally is one athlete's aggregated calories
type Tally struct {
	Total      float64
	Missing    int // activities that contributed nothing (no estimate or fetch failed)
	Activities int
	// Errors holds the detail fetch failures counted in Missing
	Errors []error
}

// Aggregate sums the calories of every summarized activity, fetching details
// one at a time.
func Aggregate(ctx context.Context, details DetailFetcher, accessToken string, summaries []strava.ActivitySummary) Tally {
	return aggregate(ctx, details, accessToken, summaries, DetailConcurrency)
}

// aggregate fetches details with at most limit requests in flight. A failed
// fetch counts as missing and never stops the others. The total does not
// depend on the order of summaries.
func aggregate(ctx context.Context, details DetailFetcher, accessToken string, summaries []strava.ActivitySummary, limit int) Tally {
	if limit < 1 {
		limit = 1
	}

	calories := make([]*float64, len(summaries))
	errs := make([]error, len(summaries))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, s := range summaries {
		g.Go(func() error {
			d, err := details.ActivityDetail(ctx, accessToken, s.ID)
			if err != nil {
				errs[i] = err
				return nil
			}
			if d.HasCalories() {
				calories[i] = d.Calories
			}
			return nil
		})
	}
	g.Wait()

	t := Tally{Activities: len(summaries)}
	present := make([]float64, 0, len(summaries))
	for i, c := range calories {
		if errs[i] != nil {
			t.Errors = append(t.Errors, errs[i])
		}
		if c == nil {
			t.Missing++
			continue
		}
		present = append(present, *c)
	}

	// Fixed summation order keeps the float total identical under permutation.
	sort.Float64s(present)
	for _, v := range present {
		t.Total += v
	}
	return t
}
