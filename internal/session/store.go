package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session is unknown or already expired
var ErrSessionNotFound = errors.New("session not found or expired")

// Record is the server-side state of a signed in user
type Record struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Store persists session records in redis. Keys expire with the inactivity timeout,
// so a record that is still present has not timed out yet.
type Store struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewStore creates a session store on an existing redis client
func NewStore(client *redis.Client, prefix string, timeout time.Duration) *Store {
	if prefix == "" {
		prefix = "session:"
	}
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Store{client: client, prefix: prefix, timeout: timeout}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save writes the record and restarts its expiry
func (s *Store) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.SessionID), data, s.timeout).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns the record of a live session
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &rec, nil
}

// Touch records activity at the given time and restarts the expiry
func (s *Store) Touch(ctx context.Context, sessionID string, at time.Time) (*Record, error) {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rec.LastActivity = at
	if err := s.Save(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Clear deletes a session. Clearing an unknown session is not an error.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Ping checks if redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
