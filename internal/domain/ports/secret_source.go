package ports

import "context"

// SecretSource resolves a named secret to its current value. Implementations
// live behind the provider SDKs (AWS Secrets Manager, Vault).
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
