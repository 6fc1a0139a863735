package strava

import (
	"fmt"
	"iter"
)

// Activities is a lazy, single-use listing of activity summaries.
// A failing page ends the sequence early; what was yielded before the
// failure stays valid and the failure is reported by Err.
type Activities struct {
	fetch   func(page int) ([]ActivitySummary, error)
	perPage int

	consumed bool
	yielded  int
	err      error
}

// NewActivities builds a listing from a page fetcher. Pages are numbered from
// 1 and a page shorter than perPage is the last one.
func NewActivities(perPage int, fetch func(page int) ([]ActivitySummary, error)) *Activities {
	return &Activities{fetch: fetch, perPage: perPage}
}

// All returns the sequence. It can be ranged over once; later calls yield nothing.
func (a *Activities) All() iter.Seq[ActivitySummary] {
	return func(yield func(ActivitySummary) bool) {
		if a.consumed {
			return
		}
		a.consumed = true

		for page := 1; ; page++ {
			batch, err := a.fetch(page)
			if err != nil {
				a.err = fmt.Errorf("fetching page %d: %w", page, err)
				return
			}

			for _, activity := range batch {
				a.yielded++
				if !yield(activity) {
					return
				}
			}

			if len(batch) == 0 || len(batch) < a.perPage {
				return // last page
			}
		}
	}
}

// Collect drains the sequence into a slice
func (a *Activities) Collect() []ActivitySummary {
	var out []ActivitySummary
	for activity := range a.All() {
		out = append(out, activity)
	}
	return out
}

// Err returns the error that cut the listing short, if any
func (a *Activities) Err() error {
	return a.err
}

// Yielded returns how many summaries the sequence produced
func (a *Activities) Yielded() int {
	return a.yielded
}
