package main

import (
	"context"
	"fmt"

	"github.com/storix-vn/payment-service/internal/adapters/secrets"
	"github.com/storix-vn/payment-service/internal/config"
	"github.com/storix-vn/payment-service/internal/domain/ports"
)

// resolveMomoSecretKey loads the MoMo signing key from the configured backend.
// Supports:
//   - env (default): MOMO_SECRET_KEY environment variable
//   - aws: AWS Secrets Manager, secret named by AWS_SECRET_NAME
//   - vault: HashiCorp Vault KV v2 at VAULT_SECRET_PATH, field VAULT_SECRET_FIELD
func resolveMomoSecretKey(ctx context.Context, cfg *config.Config, logger ports.Logger) (string, error) {
	switch cfg.Secrets.Backend {
	case "env":
		if cfg.Momo.SecretKey == "" {
			return "", fmt.Errorf("MOMO_SECRET_KEY is not set")
		}
		return cfg.Momo.SecretKey, nil

	case "aws":
		if cfg.Secrets.AWSSecretName == "" {
			return "", fmt.Errorf("AWS_SECRET_NAME is required when SECRET_BACKEND=aws")
		}
		source, err := secrets.NewAWSSecretSource(ctx, secrets.DefaultAWSConfig(cfg.Secrets.AWSRegion), logger)
		if err != nil {
			return "", fmt.Errorf("initialize AWS Secrets Manager: %w", err)
		}
		return source.GetSecret(ctx, cfg.Secrets.AWSSecretName)

	case "vault":
		vaultConfig := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress, cfg.Secrets.VaultToken)
		vaultConfig.Field = cfg.Secrets.VaultField
		source, err := secrets.NewVaultSecretSource(vaultConfig, logger)
		if err != nil {
			return "", fmt.Errorf("initialize Vault: %w", err)
		}
		return source.GetSecret(ctx, cfg.Secrets.VaultPath)

	default:
		return "", fmt.Errorf("unsupported SECRET_BACKEND %q (want env, aws or vault)", cfg.Secrets.Backend)
	}
}
