package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager ties the redis session records to one in-process countdown per session.
// Expiry of a countdown clears the record, which forces the next request to sign in again.
// Several instances may share the store; the stored last activity is authoritative.
type Manager struct {
	store  *Store
	cfg    Config
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	running map[string]*runningSession
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

type runningSession struct {
	controller *TimeoutController
	cancel     context.CancelFunc
}

// NewManager creates a manager; Close stops every running countdown
func NewManager(store *Store, cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:   store,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		logger:  logger,
		running: make(map[string]*runningSession),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the effective timeout settings
func (m *Manager) Config() Config {
	return m.cfg
}

// Start registers a new session and starts its countdown
func (m *Manager) Start(ctx context.Context, sessionID, userID, role string) (Snapshot, error) {
	now := m.now()
	rec := Record{
		SessionID:    sessionID,
		UserID:       userID,
		Role:         role,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return Snapshot{}, err
	}
	m.watch(sessionID)
	return Evaluate(now, now, m.cfg), nil
}

// watch starts a countdown for the session unless one is already running on this instance
func (m *Manager) watch(sessionID string) *TimeoutController {
	return m.watchFrom(sessionID, m.now())
}

// watchFrom starts a countdown from lastActivity. Other instances may record activity for
// the same session, so an expiring countdown re-reads the shared record before clearing it
// and resumes from the stored activity when the session is still alive.
func (m *Manager) watchFrom(sessionID string, lastActivity time.Time) *TimeoutController {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rs, ok := m.running[sessionID]; ok {
		return rs.controller
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	var resumeFrom time.Time
	controller := NewTimeoutControllerFrom(m.cfg, m.now, lastActivity, Callbacks{
		OnWarning: func(remaining time.Duration) {
			m.logger.Debug("Session entering warning window",
				zap.String("session_id", sessionID),
				zap.Duration("remaining", remaining),
			)
		},
		OnExpire: func() {
			resumeFrom = m.expire(sessionID)
		},
	})
	m.running[sessionID] = &runningSession{controller: controller, cancel: cancel}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		controller.Run(ctx)
		m.forget(sessionID, controller)
		if !resumeFrom.IsZero() && m.baseCtx.Err() == nil {
			m.watchFrom(sessionID, resumeFrom)
		}
	}()
	return controller
}

// expire clears the session when the shared record confirms the inactivity. It returns the
// stored activity time when another instance kept the session alive.
func (m *Manager) expire(sessionID string) time.Time {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return time.Time{}
	}
	if err != nil {
		// the redis TTL still ends the session
		m.logger.Warn("Failed to read session before expiry", zap.String("session_id", sessionID), zap.Error(err))
		return time.Time{}
	}

	if Evaluate(rec.LastActivity, m.now(), m.cfg).State != StateExpired {
		m.logger.Debug("Session kept alive by activity elsewhere",
			zap.String("session_id", sessionID),
			zap.Time("last_activity", rec.LastActivity),
		)
		return rec.LastActivity
	}

	if err := m.store.Clear(ctx, sessionID); err != nil {
		m.logger.Warn("Failed to clear expired session", zap.String("session_id", sessionID), zap.Error(err))
	}
	m.logger.Info("Session expired after inactivity", zap.String("session_id", sessionID))
	return time.Time{}
}

func (m *Manager) forget(sessionID string, controller *TimeoutController) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rs, ok := m.running[sessionID]; ok && rs.controller == controller {
		rs.cancel()
		delete(m.running, sessionID)
	}
}

// Activity records a user interaction for the session
func (m *Manager) Activity(ctx context.Context, sessionID string, kind ActivityKind) (Snapshot, error) {
	if _, err := ParseActivity(string(kind)); err != nil {
		return Snapshot{}, err
	}
	return m.touch(ctx, sessionID)
}

// Extend keeps the session alive from the warning dialog
func (m *Manager) Extend(ctx context.Context, sessionID string) (Snapshot, error) {
	return m.touch(ctx, sessionID)
}

func (m *Manager) touch(ctx context.Context, sessionID string) (Snapshot, error) {
	now := m.now()
	if _, err := m.store.Touch(ctx, sessionID, now); err != nil {
		return Snapshot{State: StateExpired}, err
	}
	m.watch(sessionID).Extend()
	return Evaluate(now, now, m.cfg), nil
}

// Status reports the countdown of a session without counting as activity
func (m *Manager) Status(ctx context.Context, sessionID string) (Snapshot, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Snapshot{State: StateExpired}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Evaluate(rec.LastActivity, m.now(), m.cfg), nil
}

// End signs the session out
func (m *Manager) End(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if rs, ok := m.running[sessionID]; ok {
		rs.cancel()
		delete(m.running, sessionID)
	}
	m.mu.Unlock()
	return m.store.Clear(ctx, sessionID)
}

// Close stops all countdowns and waits for them to exit
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
