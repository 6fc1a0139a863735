package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"strava-leaderboard/internal/observability"
	"strava-leaderboard/internal/store"
)

// AuthTimeout is how long to wait for the user to complete auth
const AuthTimeout = 5 * time.Minute

// Exchanger is the provider side of the consent flow
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Grant, error)
}

// Registrar adds newly authorized athletes
type Registrar interface {
	Register(ctx context.Context, c store.Credential) (bool, error)
}

// Outcome describes what a completed callback did
type Outcome struct {
	Grant *Grant
	// Delivered is set when a waiting Authorize call received the grant
	Delivered bool
	// Registered is set when a new athlete was added to the registry
	Registered bool
}

// Prompt announces a consent link that an Authorize call is waiting on.
// A second Prompt with the same ID and Closed set follows when the wait ends.
type Prompt struct {
	ID       string
	URL      string
	Deadline time.Time
	Closed   bool
}

type completion struct {
	grant *Grant
	err   error
}

// Intake receives authorization callbacks. A callback either completes a
// pending Authorize call (one-shot, matched by the state nonce) or, for
// consent links handed out through AuthorizationURL, registers a new athlete.
type Intake struct {
	exchanger Exchanger
	states    *StateSigner
	registrar Registrar
	timeout   time.Duration
	log       *observability.Logger

	mu      sync.Mutex
	pending map[string]chan completion
	notify  func(Prompt)
}

// NewIntake creates an authorization intake
func NewIntake(exchanger Exchanger, states *StateSigner, registrar Registrar, timeout time.Duration, log *observability.Logger) *Intake {
	if timeout <= 0 {
		timeout = AuthTimeout
	}
	if log == nil {
		log = observability.Discard()
	}
	return &Intake{
		exchanger: exchanger,
		states:    states,
		registrar: registrar,
		timeout:   timeout,
		log:       log,
		pending:   make(map[string]chan completion),
	}
}

// OnPrompt sets fn to receive every consent link Authorize waits on.
// fn runs on the authorizing goroutine.
func (in *Intake) OnPrompt(fn func(Prompt)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.notify = fn
}

// AuthorizationURL returns a consent link for registering a new athlete
func (in *Intake) AuthorizationURL() (string, error) {
	state, err := in.states.Issue(uuid.NewString())
	if err != nil {
		return "", err
	}
	return in.exchanger.AuthCodeURL(state), nil
}

// Authorize publishes a consent link and blocks until its callback arrives,
// the timeout passes, or ctx is done.
func (in *Intake) Authorize(ctx context.Context) (*Grant, error) {
	nonce := uuid.NewString()
	state, err := in.states.Issue(nonce)
	if err != nil {
		return nil, err
	}

	done := make(chan completion, 1)
	in.mu.Lock()
	in.pending[nonce] = done
	in.mu.Unlock()
	defer in.take(nonce)

	link := in.exchanger.AuthCodeURL(state)
	in.log.Info("authorization_required", map[string]any{
		"url":     link,
		"timeout": in.timeout.String(),
	})

	in.announce(Prompt{ID: nonce, URL: link, Deadline: time.Now().Add(in.timeout)})
	defer in.announce(Prompt{ID: nonce, URL: link, Closed: true})

	timer := time.NewTimer(in.timeout)
	defer timer.Stop()

	select {
	case c := <-done:
		return c.grant, c.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %v", ErrAuthorizationTimeout, in.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Complete handles the provider redirect. errParam is the provider's error
// query parameter; when set the code is ignored.
func (in *Intake) Complete(ctx context.Context, state, code, errParam string) (*Outcome, error) {
	nonce, err := in.states.Verify(state)
	if err != nil {
		return nil, err
	}
	waiter := in.take(nonce)

	fail := func(err error) (*Outcome, error) {
		if waiter != nil {
			waiter <- completion{err: err}
		}
		return nil, err
	}

	if errParam != "" {
		return fail(fmt.Errorf("%w: %s", ErrAuthorizationDenied, errParam))
	}
	if code == "" {
		return fail(fmt.Errorf("%w: no code in callback", ErrAuthorizationDenied))
	}

	grant, err := in.exchanger.Exchange(ctx, code)
	if err != nil {
		return fail(err)
	}

	if waiter != nil {
		waiter <- completion{grant: grant}
		return &Outcome{Grant: grant, Delivered: true}, nil
	}

	if grant.Athlete.ID == 0 {
		return nil, fmt.Errorf("%w: token response carried no athlete", ErrExchangeFailed)
	}

	cred := store.Credential{
		ID:           grant.Athlete.ID,
		Name:         grant.Athlete.FullName(),
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
	}
	added, err := in.registrar.Register(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("registering athlete %d: %w", cred.ID, err)
	}
	in.log.Info("athlete_registered", map[string]any{"user": cred.Key(), "name": cred.Name, "added": added})
	return &Outcome{Grant: grant, Registered: added}, nil
}

func (in *Intake) announce(p Prompt) {
	in.mu.Lock()
	fn := in.notify
	in.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// Pending returns how many Authorize calls are waiting
func (in *Intake) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// take removes and returns the waiter for nonce, nil if there is none
func (in *Intake) take(nonce string) chan completion {
	in.mu.Lock()
	defer in.mu.Unlock()
	ch := in.pending[nonce]
	delete(in.pending, nonce)
	return ch
}
