package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Momo     MomoConfig
	Secrets  SecretsConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// MomoConfig holds MoMo ATM gateway configuration. SecretKey is left empty
// here when a secret backend is configured; the server resolves it at startup.
type MomoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	PaymentURL  string // MoMo create-payment endpoint
	BaseURL     string // public base URL of this service
	ReturnURL   string // browser redirect path appended to BaseURL
	NotifyURL   string // IPN path appended to BaseURL
	Timeout     int    // request timeout in seconds
}

// SecretsConfig selects where the MoMo secret key is loaded from.
// Backend is one of: env, aws, vault.
type SecretsConfig struct {
	Backend string

	// aws
	AWSSecretName string
	AWSRegion     string

	// vault
	VaultAddress string
	VaultToken   string
	VaultPath    string
	VaultField   string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "payment_service"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Momo: MomoConfig{
			PartnerCode: getEnv("MOMO_PARTNER_CODE", ""),
			AccessKey:   getEnv("MOMO_ACCESS_KEY", ""),
			SecretKey:   getEnv("MOMO_SECRET_KEY", ""),
			PaymentURL:  getEnv("MOMO_PAYMENT_URL", "https://test-payment.momo.vn/v2/gateway/api/create"),
			BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
			ReturnURL:   getEnv("MOMO_RETURN_URL", "/api/payments/momo/atm/callback"),
			NotifyURL:   getEnv("MOMO_NOTIFY_URL", "/api/payments/momo/atm/ipn"),
			Timeout:     getEnvAsInt("MOMO_TIMEOUT", 30),
		},
		Secrets: SecretsConfig{
			Backend:       getEnv("SECRET_BACKEND", "env"),
			AWSSecretName: getEnv("AWS_SECRET_NAME", ""),
			AWSRegion:     getEnv("AWS_REGION", ""),
			VaultAddress:  getEnv("VAULT_ADDR", ""),
			VaultToken:    getEnv("VAULT_TOKEN", ""),
			VaultPath:     getEnv("VAULT_SECRET_PATH", "secret/data/momo"),
			VaultField:    getEnv("VAULT_SECRET_FIELD", "secret_key"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Momo.PartnerCode == "" {
		return nil, fmt.Errorf("MOMO_PARTNER_CODE is required")
	}
	if cfg.Momo.AccessKey == "" {
		return nil, fmt.Errorf("MOMO_ACCESS_KEY is required")
	}
	if cfg.Secrets.Backend == "env" && cfg.Momo.SecretKey == "" {
		return nil, fmt.Errorf("MOMO_SECRET_KEY is required when SECRET_BACKEND=env")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
