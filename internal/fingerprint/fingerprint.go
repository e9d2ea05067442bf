// Package fingerprint derives a weak per-browser device hint from environment signals.
// Collisions are possible; a fingerprint must never be used to authenticate.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"sync"
)

// Length of a fingerprint in characters
const Length = 32

// Signals are the browser environment values a fingerprint is built from
type Signals struct {
	UserAgent        string
	Language         string
	Platform         string
	ScreenResolution string
	Timezone         string
	ColorDepth       int
	CookiesEnabled   bool
	CanvasHash       string
}

// canonical joins the signals in a fixed order
func (s Signals) canonical() string {
	return strings.Join([]string{
		s.UserAgent,
		s.Language,
		s.Platform,
		s.ScreenResolution,
		s.Timezone,
		strconv.Itoa(s.ColorDepth),
		strconv.FormatBool(s.CookiesEnabled),
		s.CanvasHash,
	}, "|")
}

// Generate returns the fingerprint of the signals. The joined signals are hashed before
// encoding, so every signal affects the truncated output.
func Generate(s Signals) string {
	sum := sha256.Sum256([]byte(s.canonical()))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:Length]
}

// IsKnownDevice reports whether the current signals produce the stored fingerprint
func IsKnownDevice(stored string, current Signals) bool {
	return stored != "" && stored == Generate(current)
}

// ErrNotSaved is returned when no fingerprint was saved for the owner
var ErrNotSaved = errors.New("no fingerprint saved")

// Store keeps fingerprints that users explicitly chose to save
type Store interface {
	Save(ctx context.Context, owner, fingerprint string) error
	Get(ctx context.Context, owner string) (string, error)
	Clear(ctx context.Context, owner string) error
}

// MemoryStore is an in-process Store, cleared on restart
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Save(ctx context.Context, owner, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[owner] = fingerprint
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, owner string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fp, ok := m.values[owner]
	if !ok {
		return "", ErrNotSaved
	}
	return fp, nil
}

func (m *MemoryStore) Clear(ctx context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, owner)
	return nil
}
