package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, srv.Client())
	c.rateLimiter.minInterval = 0
	return c
}

func summaries(ids ...int64) []ActivitySummary {
	out := make([]ActivitySummary, len(ids))
	for i, id := range ids {
		out[i] = ActivitySummary{ID: id, Name: fmt.Sprintf("Run %d", id), Distance: 5000}
	}
	return out
}

func TestActivitiesSincePaginates(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 15, 30, 0, 0, time.Local)
	wantAfter := strconv.FormatInt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local).Unix()-1, 10)

	pages := map[string][]ActivitySummary{
		"1": summaries(1, 2),
		"2": summaries(3, 4),
		"3": summaries(5),
	}
	var requested []string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete/activities" {
			t.Errorf("path = %q, want /athlete/activities", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want Bearer tok-1", got)
		}
		if got := r.URL.Query().Get("after"); got != wantAfter {
			t.Errorf("after = %q, want %q", got, wantAfter)
		}
		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		json.NewEncoder(w).Encode(pages[page])
	}))
	c.perPage = 2

	acts := c.ActivitiesSince(context.Background(), "tok-1", cutoff)
	if len(requested) != 0 {
		t.Fatalf("requests made before iteration: %v", requested)
	}

	got := acts.Collect()
	if len(got) != 5 {
		t.Fatalf("got %d activities, want 5", len(got))
	}
	for i, a := range got {
		if a.ID != int64(i+1) {
			t.Errorf("activity %d has id %d, want %d", i, a.ID, i+1)
		}
	}
	if acts.Err() != nil {
		t.Errorf("Err() = %v, want nil", acts.Err())
	}
	if len(requested) != 3 {
		t.Errorf("requested pages %v, want 3 pages", requested)
	}

	if again := acts.Collect(); len(again) != 0 {
		t.Errorf("second iteration yielded %d activities, want 0", len(again))
	}
}

func TestActivitiesSinceKeepsPartialResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(summaries(1, 2))
	}))
	c.perPage = 2

	acts := c.ActivitiesSince(context.Background(), "tok", time.Now())
	got := acts.Collect()

	if len(got) != 2 {
		t.Errorf("got %d activities, want the 2 from page 1", len(got))
	}
	var apiErr *APIError
	if !errors.As(acts.Err(), &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Err() = %v, want APIError 502", acts.Err())
	}
	if acts.Yielded() != 2 {
		t.Errorf("Yielded() = %d, want 2", acts.Yielded())
	}
}

func TestActivityDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("include_all_efforts") != "false" {
			t.Errorf("include_all_efforts = %q, want false", r.URL.Query().Get("include_all_efforts"))
		}
		switch r.URL.Path {
		case "/activities/1":
			fmt.Fprint(w, `{"id": 1, "name": "Morning Run", "calories": 512.5}`)
		case "/activities/2":
			fmt.Fprint(w, `{"id": 2, "name": "Walk"}`)
		case "/activities/3":
			fmt.Fprint(w, `{"id": 3, "name": "Rest", "calories": 0}`)
		default:
			http.Error(w, `{"message":"Record Not Found"}`, http.StatusNotFound)
		}
	}))
	ctx := context.Background()

	t.Run("calories present", func(t *testing.T) {
		d, err := c.ActivityDetail(ctx, "tok", 1)
		if err != nil {
			t.Fatalf("ActivityDetail() error = %v", err)
		}
		if !d.HasCalories() || *d.Calories != 512.5 {
			t.Errorf("Calories = %v, want 512.5", d.Calories)
		}
		if d.Name != "Morning Run" {
			t.Errorf("Name = %q, want Morning Run", d.Name)
		}
	})

	t.Run("calories absent", func(t *testing.T) {
		d, err := c.ActivityDetail(ctx, "tok", 2)
		if err != nil {
			t.Fatalf("ActivityDetail() error = %v", err)
		}
		if d.HasCalories() {
			t.Errorf("Calories = %v, want nil", *d.Calories)
		}
	})

	t.Run("zero calories is present", func(t *testing.T) {
		d, err := c.ActivityDetail(ctx, "tok", 3)
		if err != nil {
			t.Fatalf("ActivityDetail() error = %v", err)
		}
		if !d.HasCalories() || *d.Calories != 0 {
			t.Errorf("Calories = %v, want pointer to 0", d.Calories)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.ActivityDetail(ctx, "tok", 404)
		var dfe *DetailFetchError
		if !errors.As(err, &dfe) {
			t.Fatalf("error = %v, want DetailFetchError", err)
		}
		if dfe.StatusCode != http.StatusNotFound || dfe.ActivityID != 404 {
			t.Errorf("DetailFetchError = %+v", dfe)
		}
		if dfe.Body != `{"message":"Record Not Found"}` {
			t.Errorf("Body = %q", dfe.Body)
		}
	})
}

func TestAthlete(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 42, "firstname": "Eliud", "lastname": "Kipchoge"}`)
	}))

	a, err := c.Athlete(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Athlete() error = %v", err)
	}
	if a.ID != 42 || a.FullName() != "Eliud Kipchoge" {
		t.Errorf("Athlete() = %+v", a)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewClient(srv.URL, srv.Client())
	c.rateLimiter.minInterval = 0
	srv.Close()

	_, err := c.ActivityDetail(context.Background(), "tok", 1)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
	var dfe *DetailFetchError
	if errors.As(err, &dfe) {
		t.Error("transport failure reported as DetailFetchError")
	}
}
