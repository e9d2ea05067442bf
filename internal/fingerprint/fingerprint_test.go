package fingerprint_test

import (
	"context"
	"testing"

	"github.com/brasmat/proposal-api/internal/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func browser() fingerprint.Signals {
	return fingerprint.Signals{
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0 Safari/537.36",
		Language:         "pt-BR",
		Platform:         "Win32",
		ScreenResolution: "1920x1080",
		Timezone:         "America/Sao_Paulo",
		ColorDepth:       24,
		CookiesEnabled:   true,
		CanvasHash:       "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAA",
	}
}

func TestGenerate_Stable(t *testing.T) {
	first := fingerprint.Generate(browser())
	second := fingerprint.Generate(browser())

	assert.Equal(t, first, second)
	assert.Len(t, first, fingerprint.Length)
}

func TestGenerate_EverySignalMatters(t *testing.T) {
	base := fingerprint.Generate(browser())

	mutations := map[string]func(*fingerprint.Signals){
		"screen resolution": func(s *fingerprint.Signals) { s.ScreenResolution = "1366x768" },
		"language":          func(s *fingerprint.Signals) { s.Language = "en-US" },
		"timezone":          func(s *fingerprint.Signals) { s.Timezone = "America/Manaus" },
		"color depth":       func(s *fingerprint.Signals) { s.ColorDepth = 30 },
		"cookies":           func(s *fingerprint.Signals) { s.CookiesEnabled = false },
		"canvas":            func(s *fingerprint.Signals) { s.CanvasHash = "other" },
		"platform":          func(s *fingerprint.Signals) { s.Platform = "MacIntel" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := browser()
			mutate(&s)
			assert.NotEqual(t, base, fingerprint.Generate(s))
		})
	}
}

func TestIsKnownDevice(t *testing.T) {
	stored := fingerprint.Generate(browser())
	assert.True(t, fingerprint.IsKnownDevice(stored, browser()))

	other := browser()
	other.ScreenResolution = "2560x1440"
	assert.False(t, fingerprint.IsKnownDevice(stored, other))
	assert.False(t, fingerprint.IsKnownDevice("", browser()))
}

func TestMemoryStore(t *testing.T) {
	store := fingerprint.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "user-1")
	assert.ErrorIs(t, err, fingerprint.ErrNotSaved)

	require.NoError(t, store.Save(ctx, "user-1", "abc"))
	fp, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", fp)

	require.NoError(t, store.Clear(ctx, "user-1"))
	_, err = store.Get(ctx, "user-1")
	assert.ErrorIs(t, err, fingerprint.ErrNotSaved)
}
