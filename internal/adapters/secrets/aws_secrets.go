package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/storix-vn/payment-service/internal/domain/ports"
)

// AWSConfig contains configuration for the AWS Secrets Manager source.
type AWSConfig struct {
	Region string

	// Optional: AWS profile name (for local development)
	Profile string

	// Optional: custom endpoint (for LocalStack testing)
	Endpoint string

	// Cache TTL for secrets; zero disables caching
	CacheTTL time.Duration
}

// DefaultAWSConfig returns default configuration
func DefaultAWSConfig(region string) AWSConfig {
	return AWSConfig{
		Region:   region,
		CacheTTL: 5 * time.Minute,
	}
}

// AWSSecretSource implements ports.SecretSource on AWS Secrets Manager.
type AWSSecretSource struct {
	client *secretsmanager.Client
	logger ports.Logger
	cache  *secretCache
}

// NewAWSSecretSource creates a new AWS Secrets Manager source
func NewAWSSecretSource(ctx context.Context, cfg AWSConfig, logger ports.Logger) (*AWSSecretSource, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOptions := []func(*secretsmanager.Options){}
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager source initialized",
		ports.String("region", cfg.Region))

	return &AWSSecretSource{
		client: secretsmanager.NewFromConfig(awsConfig, clientOptions...),
		logger: logger,
		cache:  newSecretCache(cfg.CacheTTL),
	}, nil
}

// GetSecret retrieves a secret string by name or ARN.
func (s *AWSSecretSource) GetSecret(ctx context.Context, name string) (string, error) {
	if cached, ok := s.cache.get(name); ok {
		return cached, nil
	}

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		s.logger.Error("failed to retrieve secret",
			ports.String("name", name),
			ports.Err(err))
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}

	value := aws.ToString(result.SecretString)
	if value == "" {
		return "", fmt.Errorf("secret %s is empty", name)
	}

	s.cache.set(name, value)
	return value, nil
}
