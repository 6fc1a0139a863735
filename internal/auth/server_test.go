package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"strava-leaderboard/internal/store"
	"strava-leaderboard/internal/strava"
)

type fakeExchanger struct {
	grant Grant
	err   error
	codes []string
	urls  chan string
}

func (f *fakeExchanger) AuthCodeURL(state string) string {
	u := "https://example.test/authorize?state=" + url.QueryEscape(state)
	if f.urls != nil {
		f.urls <- u
	}
	return u
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*Grant, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return nil, f.err
	}
	g := f.grant
	return &g, nil
}

func stateFrom(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse %q: %v", link, err)
	}
	return u.Query().Get("state")
}

func newTestIntake(t *testing.T, ex *fakeExchanger, timeout time.Duration) (*Intake, *store.Registry) {
	t.Helper()
	reg, err := store.OpenRegistry(context.Background(), store.NewMemoryStore())
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	return NewIntake(ex, NewStateSigner("secret", time.Minute), reg, timeout, nil), reg
}

// authorizeAsync starts Authorize and returns the state from its consent link
func authorizeAsync(t *testing.T, in *Intake, ex *fakeExchanger) (string, <-chan completion) {
	t.Helper()
	result := make(chan completion, 1)
	go func() {
		g, err := in.Authorize(context.Background())
		result <- completion{grant: g, err: err}
	}()
	select {
	case link := <-ex.urls:
		return stateFrom(t, link), result
	case <-time.After(2 * time.Second):
		t.Fatal("Authorize never published a consent link")
	}
	return "", nil
}

func TestAuthorizeCompletesWithCallback(t *testing.T) {
	ex := &fakeExchanger{
		urls:  make(chan string, 1),
		grant: Grant{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: 100, Athlete: strava.Athlete{ID: 9}},
	}
	in, reg := newTestIntake(t, ex, time.Minute)

	state, result := authorizeAsync(t, in, ex)
	out, err := in.Complete(context.Background(), state, "code-1", "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !out.Delivered || out.Registered {
		t.Errorf("outcome = %+v, want delivered only", out)
	}

	c := <-result
	if c.err != nil {
		t.Fatalf("Authorize: %v", c.err)
	}
	if c.grant.AccessToken != "a1" {
		t.Errorf("access token = %q, want a1", c.grant.AccessToken)
	}
	if len(ex.codes) != 1 || ex.codes[0] != "code-1" {
		t.Errorf("exchanged codes = %v, want [code-1]", ex.codes)
	}
	if reg.Len() != 0 {
		t.Errorf("delivered grant should not register, registry has %d", reg.Len())
	}
	if in.Pending() != 0 {
		t.Errorf("pending = %d, want 0", in.Pending())
	}
}

func TestAuthorizeDenied(t *testing.T) {
	ex := &fakeExchanger{urls: make(chan string, 1)}
	in, _ := newTestIntake(t, ex, time.Minute)

	state, result := authorizeAsync(t, in, ex)
	if _, err := in.Complete(context.Background(), state, "", "access_denied"); !errors.Is(err, ErrAuthorizationDenied) {
		t.Errorf("Complete err = %v, want ErrAuthorizationDenied", err)
	}

	c := <-result
	if !errors.Is(c.err, ErrAuthorizationDenied) {
		t.Errorf("Authorize err = %v, want ErrAuthorizationDenied", c.err)
	}
	if len(ex.codes) != 0 {
		t.Errorf("denied callback exchanged %v", ex.codes)
	}
}

func TestAuthorizeExchangeFailure(t *testing.T) {
	ex := &fakeExchanger{urls: make(chan string, 1), err: ErrExchangeFailed}
	in, _ := newTestIntake(t, ex, time.Minute)

	state, result := authorizeAsync(t, in, ex)
	in.Complete(context.Background(), state, "code", "")

	if c := <-result; !errors.Is(c.err, ErrExchangeFailed) {
		t.Errorf("Authorize err = %v, want ErrExchangeFailed", c.err)
	}
}

func TestAuthorizeTimesOut(t *testing.T) {
	ex := &fakeExchanger{}
	in, _ := newTestIntake(t, ex, 20*time.Millisecond)

	_, err := in.Authorize(context.Background())
	if !errors.Is(err, ErrAuthorizationTimeout) {
		t.Fatalf("err = %v, want ErrAuthorizationTimeout", err)
	}
	if in.Pending() != 0 {
		t.Errorf("pending = %d, want 0", in.Pending())
	}
}

func TestAuthorizeHonorsContext(t *testing.T) {
	in, _ := newTestIntake(t, &fakeExchanger{}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := in.Authorize(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAuthorizeAnnouncesPrompt(t *testing.T) {
	ex := &fakeExchanger{
		urls:  make(chan string, 1),
		grant: Grant{AccessToken: "a1", Athlete: strava.Athlete{ID: 9}},
	}
	in, _ := newTestIntake(t, ex, time.Minute)
	prompts := make(chan Prompt, 2)
	in.OnPrompt(func(p Prompt) { prompts <- p })

	start := time.Now()
	state, result := authorizeAsync(t, in, ex)

	open := <-prompts
	if open.Closed {
		t.Fatal("first prompt is already closed")
	}
	if stateFrom(t, open.URL) != state {
		t.Errorf("prompt url = %q, want the consent link", open.URL)
	}
	if open.Deadline.Before(start.Add(time.Minute)) {
		t.Errorf("deadline = %v, want at least %v", open.Deadline, start.Add(time.Minute))
	}

	if _, err := in.Complete(context.Background(), state, "code", ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	<-result

	closed := <-prompts
	if !closed.Closed || closed.ID != open.ID {
		t.Errorf("closing prompt = %+v, want Closed for %s", closed, open.ID)
	}
}

func TestCompleteRejectsForgedState(t *testing.T) {
	ex := &fakeExchanger{}
	in, _ := newTestIntake(t, ex, time.Minute)

	forged, _ := NewStateSigner("other", time.Minute).Issue("n")
	if _, err := in.Complete(context.Background(), forged, "code", ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
	if len(ex.codes) != 0 {
		t.Errorf("forged callback exchanged %v", ex.codes)
	}
}

func TestCompleteRegistersNewAthlete(t *testing.T) {
	ex := &fakeExchanger{grant: Grant{
		AccessToken: "a1", RefreshToken: "r1", ExpiresAt: 100,
		Athlete: strava.Athlete{ID: 9, Firstname: "Ann", Lastname: "Lee"},
	}}
	in, reg := newTestIntake(t, ex, time.Minute)

	link, err := in.AuthorizationURL()
	if err != nil {
		t.Fatalf("AuthorizationURL: %v", err)
	}
	state := stateFrom(t, link)

	out, err := in.Complete(context.Background(), state, "code", "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !out.Registered {
		t.Errorf("outcome = %+v, want registered", out)
	}
	want := store.Credential{ID: 9, Name: "Ann Lee", AccessToken: "a1", RefreshToken: "r1", ExpiresAt: 100}
	if got, ok := reg.Get("id:9"); !ok || got != want {
		t.Errorf("registry = %+v, want %+v", got, want)
	}

	// A second consent by the same athlete is a no-op.
	out, err = in.Complete(context.Background(), state, "code", "")
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if out.Registered || reg.Len() != 1 {
		t.Errorf("second consent registered again (len %d)", reg.Len())
	}
}

func TestCompleteRequiresAthleteToRegister(t *testing.T) {
	ex := &fakeExchanger{grant: Grant{AccessToken: "a1", RefreshToken: "r1"}}
	in, reg := newTestIntake(t, ex, time.Minute)

	link, _ := in.AuthorizationURL()
	if _, err := in.Complete(context.Background(), stateFrom(t, link), "code", ""); !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("err = %v, want ErrExchangeFailed", err)
	}
	if reg.Len() != 0 {
		t.Errorf("registry has %d, want 0", reg.Len())
	}
}
