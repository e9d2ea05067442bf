package service

import (
	"context"
	"errors"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/fingerprint"
	"go.uber.org/zap"
)

// DeviceService computes device fingerprints and remembers them when the user opts in.
// A fingerprint is a hint for "new device" notices, not an authentication factor.
type DeviceService struct {
	store  fingerprint.Store
	logger *zap.Logger
}

// NewDeviceService creates a new DeviceService instance
func NewDeviceService(store fingerprint.Store, logger *zap.Logger) *DeviceService {
	if store == nil {
		store = fingerprint.NewMemoryStore()
	}
	return &DeviceService{store: store, logger: logger}
}

func signalsOf(req *domain.DeviceSignalsRequest) fingerprint.Signals {
	return fingerprint.Signals{
		UserAgent:        req.UserAgent,
		Language:         req.Language,
		Platform:         req.Platform,
		ScreenResolution: req.ScreenResolution,
		Timezone:         req.Timezone,
		ColorDepth:       req.ColorDepth,
		CookiesEnabled:   req.CookiesEnabled,
		CanvasHash:       req.CanvasHash,
	}
}

// Fingerprint computes the fingerprint and saves it only when req.Save is set
func (s *DeviceService) Fingerprint(ctx context.Context, req *domain.DeviceSignalsRequest) (*domain.FingerprintDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	fp := fingerprint.Generate(signalsOf(req))
	if !req.Save {
		return &domain.FingerprintDTO{Fingerprint: fp}, nil
	}

	if err := s.store.Save(ctx, user.UserID.String(), fp); err != nil {
		return nil, persistenceError("save fingerprint", err)
	}
	s.logger.Debug("device fingerprint saved", zap.String("user_id", user.UserID.String()))
	return &domain.FingerprintDTO{Fingerprint: fp, Saved: true}, nil
}

// Check compares the current signals with the caller's saved fingerprint. With nothing saved
// the device is reported as unknown.
func (s *DeviceService) Check(ctx context.Context, req *domain.DeviceSignalsRequest) (*domain.DeviceCheckDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	signals := signalsOf(req)
	stored, err := s.store.Get(ctx, user.UserID.String())
	if err != nil && !errors.Is(err, fingerprint.ErrNotSaved) {
		return nil, persistenceError("get fingerprint", err)
	}
	return &domain.DeviceCheckDTO{
		Fingerprint: fingerprint.Generate(signals),
		Known:       fingerprint.IsKnownDevice(stored, signals),
	}, nil
}

// Forget removes the caller's saved fingerprint
func (s *DeviceService) Forget(ctx context.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Clear(ctx, user.UserID.String()); err != nil {
		return persistenceError("clear fingerprint", err)
	}
	return nil
}
