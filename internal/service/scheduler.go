package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"strava-leaderboard/internal/observability"
	"strava-leaderboard/internal/store"
	"strava-leaderboard/internal/strava"
)

// TokenSource hands out valid access tokens
type TokenSource interface {
	EnsureValid(ctx context.Context, cred store.Credential) (string, error)
}

// ActivitySource is the Strava API surface a cycle needs
type ActivitySource interface {
	DetailFetcher
	ActivitiesSince(ctx context.Context, accessToken string, cutoff time.Time) *strava.Activities
	Athlete(ctx context.Context, accessToken string) (*strava.Athlete, error)
}

// Users is the registry as seen by the scheduler
type Users interface {
	Reload(ctx context.Context) error
	Users() []store.Credential
	Get(key string) (store.Credential, bool)
	Update(ctx context.Context, key string, c store.Credential) error
	Flush(ctx context.Context) error
}

// Sink receives every finished snapshot
type Sink interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, snap *Snapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap *Snapshot) error {
	return f(ctx, snap)
}

// State is what the scheduler is doing
type State string

const (
	StateRunningCycle State = "RUNNING_CYCLE"
	StateSleeping     State = "SLEEPING"
)

// Progress reports the athlete a cycle is working on
type Progress struct {
	CycleID   string
	User      string
	Completed int
	Total     int
}

// Options configure the scheduler
type Options struct {
	Since             time.Time
	Interval          time.Duration
	Policy            FailurePolicy
	Concurrency       int // athletes processed at once
	DetailConcurrency int // detail fetches in flight per athlete
}

// Scheduler runs leaderboard cycles on a fixed cadence
type Scheduler struct {
	users      Users
	tokens     TokenSource
	activities ActivitySource
	sinks      []Sink
	log        *observability.Logger
	opts       Options
	now        func() time.Time

	mu        sync.RWMutex
	state     State
	latest    *Snapshot
	nextCycle time.Time
	progress  chan<- Progress
}

// NewScheduler creates a scheduler; zero options take defaults
func NewScheduler(users Users, tokens TokenSource, activities ActivitySource, opts Options, log *observability.Logger, sinks ...Sink) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Policy == "" {
		opts.Policy = PolicyOmit
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.DetailConcurrency < 1 {
		opts.DetailConcurrency = DetailConcurrency
	}
	if log == nil {
		log = observability.Discard()
	}
	return &Scheduler{
		users:      users,
		tokens:     tokens,
		activities: activities,
		sinks:      sinks,
		log:        log,
		opts:       opts,
		now:        time.Now,
		state:      StateSleeping,
	}
}

// AddSink registers another snapshot receiver. Call before Run.
func (s *Scheduler) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// SetProgress sets a channel that receives per-athlete progress. Sends never
// block; updates are dropped when the channel is full.
func (s *Scheduler) SetProgress(ch chan<- Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = ch
}

// State returns the current state
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// NextCycle returns when the next cycle starts; zero while a cycle runs
func (s *Scheduler) NextCycle() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextCycle
}

// Latest returns the most recent snapshot, nil before the first cycle ends
func (s *Scheduler) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Run repeats cycles until ctx is done. A cycle that cannot start (the
// registry fails to reload) is logged and retried next interval.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("cycle_failed", map[string]any{"error": err})
			observability.CaptureUserError(err, "", "cycle")
		}

		next := s.now().Add(s.opts.Interval)
		s.setState(StateSleeping, next)
		s.log.Info("cycle_sleeping", map[string]any{"next_cycle": next.Format(time.RFC3339)})

		timer := time.NewTimer(s.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// userResult is the outcome for one registry position
type userResult struct {
	entry   Entry
	failure *Failure
	skipped bool // ctx ended before the athlete was processed
}

// RunCycle runs one cycle and returns its snapshot. If ctx ends mid-cycle the
// remaining athletes are skipped and no snapshot is produced.
func (s *Scheduler) RunCycle(ctx context.Context) (*Snapshot, error) {
	s.setState(StateRunningCycle, time.Time{})
	defer s.setState(StateSleeping, time.Time{})

	snap := &Snapshot{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
		Since:     s.opts.Since,
		Policy:    s.opts.Policy,
	}

	if err := s.users.Reload(ctx); err != nil {
		return nil, fmt.Errorf("reloading registry: %w", err)
	}
	users := s.users.Users()
	s.log.Info("cycle_started", map[string]any{"cycle": snap.ID, "users": len(users), "since": s.opts.Since.Format(time.DateOnly)})

	results := make([]userResult, len(users))
	var (
		done   int
		doneMu sync.Mutex
	)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, cred := range users {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].skipped = true
				return nil
			}
			results[i] = s.processUser(ctx, i, cred)

			doneMu.Lock()
			done++
			s.report(Progress{CycleID: snap.ID, User: cred.DisplayName(), Completed: done, Total: len(users)})
			doneMu.Unlock()
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		s.log.Warn("cycle_abandoned", map[string]any{"cycle": snap.ID, "error": err})
		return nil, err
	}

	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		if r.failure != nil {
			snap.Failures = append(snap.Failures, *r.failure)
			if s.opts.Policy != PolicyZero {
				continue
			}
		}
		entries = append(entries, r.entry)
	}
	snap.Entries = Rank(entries)
	snap.FinishedAt = s.now()

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	s.log.Info("cycle_finished", map[string]any{
		"cycle":    snap.ID,
		"entries":  len(snap.Entries),
		"failures": len(snap.Failures),
		"duration": snap.FinishedAt.Sub(snap.StartedAt).String(),
	})

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			s.log.Error("sink_failed", map[string]any{"cycle": snap.ID, "sink": fmt.Sprintf("%T", sink), "error": err})
		}
	}

	if err := s.users.Flush(ctx); err != nil {
		s.log.Error("registry_flush_failed", map[string]any{"error": err})
	}
	return snap, nil
}

// processUser never returns an error: failures are recorded in the result
func (s *Scheduler) processUser(ctx context.Context, order int, cred store.Credential) userResult {
	fail := func(stage string, err error) userResult {
		s.log.Error("user_failed", map[string]any{"user": cred.Key(), "name": cred.DisplayName(), "stage": stage, "error": err})
		if !errors.Is(err, context.Canceled) {
			observability.CaptureUserError(err, cred.Key(), stage)
		}
		return userResult{
			entry:   Entry{AthleteID: cred.ID, Name: cred.DisplayName(), Failed: true, order: order},
			failure: &Failure{User: cred.Key(), Name: cred.DisplayName(), Stage: stage, Error: err.Error()},
		}
	}

	token, err := s.tokens.EnsureValid(ctx, cred)
	if err != nil {
		return fail(StageToken, err)
	}

	cred = s.resolveProfile(ctx, cred, token)

	acts := s.activities.ActivitiesSince(ctx, token, s.opts.Since)
	summaries := acts.Collect()
	if err := acts.Err(); err != nil {
		// Partial listings still count.
		s.log.Warn("listing_truncated", map[string]any{"user": cred.Key(), "fetched": acts.Yielded(), "error": err})
	}

	tally := aggregate(ctx, s.activities, token, summaries, s.opts.DetailConcurrency)
	for _, err := range tally.Errors {
		s.log.Warn("detail_missing", map[string]any{"user": cred.Key(), "error": err})
	}

	s.log.Info("user_tallied", map[string]any{
		"user":       cred.Key(),
		"name":       cred.DisplayName(),
		"total":      tally.Total,
		"activities": tally.Activities,
		"missing":    tally.Missing,
	})
	return userResult{entry: Entry{
		AthleteID:  cred.ID,
		Name:       cred.DisplayName(),
		Total:      tally.Total,
		Missing:    tally.Missing,
		Activities: tally.Activities,
		order:      order,
	}}
}

// resolveProfile returns the freshest record for cred, filling a missing
// athlete id or name from the profile. Profile failures only cost the name.
func (s *Scheduler) resolveProfile(ctx context.Context, cred store.Credential, token string) store.Credential {
	if latest, ok := s.users.Get(cred.Key()); ok {
		cred = latest
	}
	if cred.ID != 0 && cred.Name != "" {
		return cred
	}

	athlete, err := s.activities.Athlete(ctx, token)
	if err != nil {
		s.log.Warn("profile_failed", map[string]any{"user": cred.Key(), "error": err})
		return cred
	}

	// A placeholder authorized this cycle is now stored under its athlete id.
	stored := false
	if cred.ID == 0 {
		cred.ID = athlete.ID
	}
	if latest, ok := s.users.Get(cred.Key()); ok {
		cred = latest
		stored = true
	}
	if cred.Name != "" {
		return cred
	}

	cred.Name = athlete.FullName()
	if stored && cred.Name != "" {
		if err := s.users.Update(ctx, cred.Key(), cred); err != nil {
			s.log.Warn("name_save_failed", map[string]any{"user": cred.Key(), "error": err})
		}
	}
	return cred
}

func (s *Scheduler) setState(state State, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.nextCycle = next
}

func (s *Scheduler) report(p Progress) {
	s.mu.RLock()
	ch := s.progress
	s.mu.RUnlock()
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}
