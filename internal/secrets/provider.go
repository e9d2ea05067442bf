package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SecretSource defines where secrets are loaded from
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
	// SourceAuto uses vault outside development
	SourceAuto SecretSource = "auto"
)

// Fetcher returns the raw value of a named secret from a remote store
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// Provider resolves credentials (LLM key, extraction key, gateway tokens, database
// password) from the environment or from a vault-backed Fetcher.
type Provider struct {
	source  SecretSource
	fetcher Fetcher
	cache   *cache
	logger  *zap.Logger
}

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ResolveSource turns SourceAuto into a concrete source for the environment
func ResolveSource(source SecretSource, environment string) SecretSource {
	if source != SourceAuto {
		return source
	}
	switch environment {
	case "development", "local", "test", "":
		return SourceEnvironment
	default:
		return SourceVault
	}
}

// NewProvider creates a secrets provider, connecting to Key Vault when the resolved source is vault
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := ResolveSource(cfg.Source, cfg.Environment)

	var fetcher Fetcher
	if source == SourceVault {
		if cfg.VaultName == "" {
			return nil, fmt.Errorf("vault name required when using vault secret source")
		}
		vault, err := NewVaultClient(cfg.VaultName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}
		fetcher = vault
	}

	logger.Info("Secrets provider initialized",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment),
	)

	return NewProviderWithFetcher(source, fetcher, cfg.CacheEnabled, cfg.CacheTTL, logger), nil
}

// NewProviderWithFetcher builds a provider around an existing fetcher
func NewProviderWithFetcher(source SecretSource, fetcher Fetcher, cacheEnabled bool, ttl time.Duration, logger *zap.Logger) *Provider {
	p := &Provider{
		source:  source,
		fetcher: fetcher,
		logger:  logger,
	}
	if cacheEnabled {
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		p.cache = newCache(ttl)
	}
	return p
}

// GetSecret retrieves a secret by name.
// For the environment source the name is mapped to an env var (dashes become underscores, upper case).
func (p *Provider) GetSecret(ctx context.Context, name string) (string, error) {
	switch p.source {
	case SourceEnvironment:
		envName := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		value := os.Getenv(envName)
		if value == "" {
			return "", fmt.Errorf("environment variable '%s' not set", envName)
		}
		return value, nil

	case SourceVault:
		if p.fetcher == nil {
			return "", fmt.Errorf("vault client not initialized")
		}
		if p.cache != nil {
			if value, ok := p.cache.get(name); ok {
				return value, nil
			}
		}
		value, err := p.fetcher.Fetch(ctx, name)
		if err != nil {
			p.logger.Error("Failed to get secret",
				zap.String("secret_name", name),
				zap.Error(err),
			)
			return "", err
		}
		if p.cache != nil {
			p.cache.put(name, value)
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown secret source: %s", p.source)
	}
}

// GetSecretOrEnv prefers an explicitly set environment variable over the configured source
func (p *Provider) GetSecretOrEnv(ctx context.Context, name, envName string) (string, error) {
	if envValue := os.Getenv(envName); envValue != "" {
		p.logger.Debug("Using environment variable override", zap.String("env_name", envName))
		return envValue, nil
	}
	return p.GetSecret(ctx, name)
}

// Source returns the current secret source
func (p *Provider) Source() SecretSource {
	return p.source
}

// IsVaultEnabled returns true if secrets are loaded from vault
func (p *Provider) IsVaultEnabled() bool {
	return p.source == SourceVault
}
