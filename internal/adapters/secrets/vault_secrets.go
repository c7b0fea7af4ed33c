package secrets

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"

	"github.com/storix-vn/payment-service/internal/domain/ports"
)

// VaultConfig contains configuration for the HashiCorp Vault source.
// Secrets are read from the KV v2 engine.
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string

	// Token for token authentication
	Token string

	// Field inside the secret data holding the value (default: "value")
	Field string

	// Cache TTL for secrets; zero disables caching
	CacheTTL time.Duration

	// TLS configuration
	TLSSkipVerify bool
}

// DefaultVaultConfig returns default configuration
func DefaultVaultConfig(address, token string) VaultConfig {
	return VaultConfig{
		Address:  address,
		Token:    token,
		Field:    "value",
		CacheTTL: 5 * time.Minute,
	}
}

// VaultSecretSource implements ports.SecretSource on HashiCorp Vault.
type VaultSecretSource struct {
	client *vault.Client
	field  string
	logger ports.Logger
	cache  *secretCache
}

// NewVaultSecretSource creates a new Vault source
func NewVaultSecretSource(cfg VaultConfig, logger ports.Logger) (*VaultSecretSource, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create Vault client: %w", err)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token is required")
	}
	client.SetToken(cfg.Token)

	field := cfg.Field
	if field == "" {
		field = "value"
	}

	logger.Info("Vault secret source initialized",
		ports.String("address", cfg.Address))

	return &VaultSecretSource{
		client: client,
		field:  field,
		logger: logger,
		cache:  newSecretCache(cfg.CacheTTL),
	}, nil
}

// GetSecret reads a KV v2 secret at path and returns the configured field.
func (s *VaultSecretSource) GetSecret(ctx context.Context, path string) (string, error) {
	if cached, ok := s.cache.get(path); ok {
		return cached, nil
	}

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		s.logger.Error("failed to read secret from Vault",
			ports.String("path", path),
			ports.Err(err))
		return "", fmt.Errorf("read secret from Vault: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found: %s", path)
	}

	// KV v2 wraps the payload in a "data" field.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}

	value, ok := data[s.field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("secret %s has no %q field", path, s.field)
	}

	s.cache.set(path, value)
	return value, nil
}
