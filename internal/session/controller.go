// Package session implements the inactivity timeout: a countdown state machine that warns
// before expiry and forces logout when it reaches zero, plus the redis-backed server session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of an inactivity countdown
type State string

const (
	StateActive  State = "active"
	StateWarning State = "warning"
	StateExpired State = "expired"
)

// ActivityKind is a user interaction that resets the countdown
type ActivityKind string

const (
	ActivityPointerDown ActivityKind = "pointerdown"
	ActivityKeyDown     ActivityKind = "keydown"
	ActivityScroll      ActivityKind = "scroll"
	ActivityTouchStart  ActivityKind = "touchstart"
)

// ErrUnknownActivity is returned for interactions that do not count as activity
var ErrUnknownActivity = errors.New("unrecognized activity kind")

// ParseActivity validates an activity kind reported by a client
func ParseActivity(s string) (ActivityKind, error) {
	switch k := ActivityKind(s); k {
	case ActivityPointerDown, ActivityKeyDown, ActivityScroll, ActivityTouchStart:
		return k, nil
	}
	return "", ErrUnknownActivity
}

// Config of a countdown
type Config struct {
	Timeout time.Duration
	Warning time.Duration
	Tick    time.Duration
}

// DefaultConfig is 30 minutes with a warning 5 minutes before, ticking every second
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Minute, Warning: 5 * time.Minute, Tick: time.Second}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Warning < 0 || c.Warning >= c.Timeout {
		c.Warning = d.Warning
		if c.Warning >= c.Timeout {
			c.Warning = c.Timeout / 6
		}
	}
	if c.Tick <= 0 {
		c.Tick = d.Tick
	}
	return c
}

// Snapshot is the observable state of a countdown
type Snapshot struct {
	State       State
	Remaining   time.Duration
	ShowWarning bool
}

// Evaluate derives the countdown state from the time of the last activity
func Evaluate(lastActivity, now time.Time, cfg Config) Snapshot {
	cfg = cfg.withDefaults()
	remaining := lastActivity.Add(cfg.Timeout).Sub(now)
	switch {
	case remaining <= 0:
		return Snapshot{State: StateExpired}
	case remaining <= cfg.Warning:
		return Snapshot{State: StateWarning, Remaining: remaining, ShowWarning: true}
	default:
		return Snapshot{State: StateActive, Remaining: remaining}
	}
}

// Callbacks are invoked from the goroutine running the controller, never under its lock
type Callbacks struct {
	// OnWarning fires once each time the countdown enters the warning window
	OnWarning func(remaining time.Duration)
	// OnExpire fires exactly once, when the countdown reaches zero
	OnExpire func()
}

// TimeoutController runs one inactivity countdown. Activity and Extend may be called
// from any goroutine while Run is ticking.
type TimeoutController struct {
	cfg       Config
	now       func() time.Time
	callbacks Callbacks

	mu           sync.Mutex
	lastActivity time.Time
	warned       bool
	expired      bool
}

// NewTimeoutController creates a controller whose countdown starts now
func NewTimeoutController(cfg Config, now func() time.Time, callbacks Callbacks) *TimeoutController {
	if now == nil {
		now = time.Now
	}
	return NewTimeoutControllerFrom(cfg, now, now(), callbacks)
}

// NewTimeoutControllerFrom creates a controller counting down from an earlier activity
func NewTimeoutControllerFrom(cfg Config, now func() time.Time, lastActivity time.Time, callbacks Callbacks) *TimeoutController {
	if now == nil {
		now = time.Now
	}
	return &TimeoutController{
		cfg:          cfg.withDefaults(),
		now:          now,
		callbacks:    callbacks,
		lastActivity: lastActivity,
	}
}

// Activity resets the countdown to the full timeout and clears the warning.
// It has no effect once the session expired.
func (c *TimeoutController) Activity(kind ActivityKind) error {
	if _, err := ParseActivity(string(kind)); err != nil {
		return err
	}
	c.reset()
	return nil
}

// Extend is the explicit "keep me signed in" action from the warning dialog
func (c *TimeoutController) Extend() {
	c.reset()
}

func (c *TimeoutController) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired {
		return
	}
	c.lastActivity = c.now()
	c.warned = false
}

// Snapshot returns the current state
func (c *TimeoutController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired {
		return Snapshot{State: StateExpired}
	}
	return Evaluate(c.lastActivity, c.now(), c.cfg)
}

// Tick advances the state machine once and fires due callbacks.
// It returns true when the countdown has expired.
func (c *TimeoutController) Tick() bool {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return true
	}
	snap := Evaluate(c.lastActivity, c.now(), c.cfg)
	var fireWarning, fireExpire bool
	switch snap.State {
	case StateExpired:
		c.expired = true
		fireExpire = true
	case StateWarning:
		if !c.warned {
			c.warned = true
			fireWarning = true
		}
	}
	c.mu.Unlock()

	if fireWarning && c.callbacks.OnWarning != nil {
		c.callbacks.OnWarning(snap.Remaining)
	}
	if fireExpire && c.callbacks.OnExpire != nil {
		c.callbacks.OnExpire()
	}
	return fireExpire
}

// Run ticks until the countdown expires or ctx is cancelled. The ticker is released on return.
func (c *TimeoutController) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Tick() {
				return
			}
		}
	}
}
