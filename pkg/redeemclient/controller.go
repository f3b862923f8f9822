// Package redeemclient drives the consumer-side redeem session: it
// holds the current token, counts its lifetime down, and mints a
// replacement when the countdown reaches zero.
package redeemclient

import (
	"context"
	"sync"
	"time"

	"github.com/tapsavehq/tapsave/internal/clock"
)

// DefaultTickInterval is how often the countdown re-renders.
const DefaultTickInterval = 250 * time.Millisecond

// Issuer mints tokens. The HTTP client implements this against
// POST /v1/redeem/sessions.
type Issuer interface {
	Issue(ctx context.Context, req IssueRequest) (*IssuedToken, error)
}

type IssueRequest struct {
	OfferID    string
	MerchantID string
	DeviceTag  string
	TTL        time.Duration
}

type IssuedToken struct {
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// State is the controller's lifecycle phase.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	// StateFailed is terminal: issuance failed, typically because the
	// free quota ran out. The controller never retries on its own; the
	// caller decides whether to Refresh after resolving the failure.
	StateFailed  State = "failed"
	StateStopped State = "stopped"
)

// Snapshot is an immutable view of the session for rendering.
type Snapshot struct {
	State     State
	TokenID   string
	ExpiresAt time.Time
	Remaining time.Duration
	Err       error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock substitutes the time source.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithTickInterval overrides the countdown cadence.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithOnChange registers a callback invoked after every state change,
// including countdown ticks. Called from the controller goroutine.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller owns one redeem session for one offer.
type Controller struct {
	issuer   Issuer
	clock    clock.Clock
	tick     time.Duration
	onChange func(Snapshot)

	mu   sync.Mutex
	req  IssueRequest
	snap Snapshot
	stop chan struct{}
	done chan struct{}
}

func New(issuer Issuer, opts ...Option) *Controller {
	c := &Controller{
		issuer: issuer,
		clock:  clock.System(),
		tick:   DefaultTickInterval,
		snap:   Snapshot{State: StateIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start issues the first token and begins the countdown loop. It
// returns the issuance error, if any; the loop only starts on success.
func (c *Controller) Start(ctx context.Context, req IssueRequest) error {
	c.mu.Lock()
	c.req = req
	c.mu.Unlock()

	if err := c.refresh(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	go c.run(ctx, stop, done)
	return nil
}

// Refresh discards the current token and mints a replacement. Safe to
// call from the UI at any time while the loop runs.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.refresh(ctx)
}

// Stop ends the countdown loop and waits for it to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	c.setSnapshot(Snapshot{State: StateStopped})
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Controller) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if !c.step(ctx) {
				return
			}
		}
	}
}

// step advances the countdown one tick. It returns false when the
// session has reached a terminal state.
func (c *Controller) step(ctx context.Context) bool {
	c.mu.Lock()
	snap := c.snap
	c.mu.Unlock()

	if snap.State != StateActive {
		return false
	}

	remaining := snap.ExpiresAt.Sub(c.clock.Now())
	if remaining > 0 {
		snap.Remaining = remaining
		c.setSnapshot(snap)
		return true
	}

	// Token lapsed on screen: replace it so the code stays scannable.
	if err := c.refresh(ctx); err != nil {
		return false
	}
	return true
}

func (c *Controller) refresh(ctx context.Context) error {
	c.mu.Lock()
	req := c.req
	c.mu.Unlock()

	token, err := c.issuer.Issue(ctx, req)
	if err != nil {
		c.setSnapshot(Snapshot{State: StateFailed, Err: err})
		return err
	}

	c.setSnapshot(Snapshot{
		State:     StateActive,
		TokenID:   token.TokenID,
		ExpiresAt: token.ExpiresAt,
		Remaining: token.ExpiresAt.Sub(c.clock.Now()),
	})
	return nil
}

func (c *Controller) setSnapshot(snap Snapshot) {
	c.mu.Lock()
	c.snap = snap
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
}
