package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Vault    VaultConfig    `json:"vault"`
	Auth     AuthConfig     `json:"auth"`
	Analysis AnalysisConfig `json:"analysis"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               int    `json:"port" envconfig:"SERVER_PORT"`
	Host               string `json:"host" envconfig:"SERVER_HOST"`
	AllowedOrigins     string `json:"allowed_origins" envconfig:"SERVER_ALLOWED_ORIGINS"` // CORS allowed origins
	RateLimitPerMinute int    `json:"rate_limit_per_minute" envconfig:"SERVER_RATE_LIMIT_PER_MINUTE"`
	MaxBarsPerRequest  int    `json:"max_bars_per_request" envconfig:"SERVER_MAX_BARS_PER_REQUEST"`
	ShutdownTimeout    int    `json:"shutdown_timeout" envconfig:"SERVER_SHUTDOWN_TIMEOUT"` // Seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host" envconfig:"DB_HOST"`
	Port     int    `json:"port" envconfig:"DB_PORT"`
	User     string `json:"user" envconfig:"DB_USER"`
	Password string `json:"password" envconfig:"DB_PASSWORD"`
	Name     string `json:"name" envconfig:"DB_NAME"`
	SSLMode  string `json:"ssl_mode" envconfig:"DB_SSL_MODE"`
}

// ConnString builds the pgx connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig holds Redis configuration for result caching
type RedisConfig struct {
	Enabled        bool          `json:"enabled" envconfig:"REDIS_ENABLED"`
	Address        string        `json:"address" envconfig:"REDIS_ADDRESS"`
	Password       string        `json:"password" envconfig:"REDIS_PASSWORD"`
	DB             int           `json:"db" envconfig:"REDIS_DB"`
	RunTTL         time.Duration `json:"run_ttl" envconfig:"REDIS_RUN_TTL"`
	FingerprintTTL time.Duration `json:"fingerprint_ttl" envconfig:"REDIS_FINGERPRINT_TTL"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled" envconfig:"VAULT_ENABLED"`
	Address    string `json:"address" envconfig:"VAULT_ADDR"`
	Token      string `json:"token" envconfig:"VAULT_TOKEN"`
	MountPath  string `json:"mount_path" envconfig:"VAULT_MOUNT_PATH"`   // KV secrets engine mount path
	SecretPath string `json:"secret_path" envconfig:"VAULT_SECRET_PATH"` // Path of the service secret
	TLSEnabled bool   `json:"tls_enabled" envconfig:"VAULT_TLS_ENABLED"`
	CACert     string `json:"ca_cert" envconfig:"VAULT_CA_CERT"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Username             string        `json:"username" envconfig:"AUTH_USERNAME"`
	Password             string        `json:"password" envconfig:"AUTH_PASSWORD"`
	JWTSecret            string        `json:"jwt_secret" envconfig:"AUTH_JWT_SECRET"`
	AccessTokenDuration  time.Duration `json:"access_token_duration" envconfig:"AUTH_ACCESS_TOKEN_DURATION"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration" envconfig:"AUTH_REFRESH_TOKEN_DURATION"`
}

// AnalysisConfig holds the pipeline parameters
type AnalysisConfig struct {
	Horizon         int    `json:"horizon" envconfig:"ANALYSIS_HORIZON"`
	SMAShort        int    `json:"sma_short" envconfig:"ANALYSIS_SMA_SHORT"`
	SMALong         int    `json:"sma_long" envconfig:"ANALYSIS_SMA_LONG"`
	TwelveBarWindow int    `json:"twelve_bar_window" envconfig:"ANALYSIS_TWELVE_BAR_WINDOW"`
	MalformedPolicy string `json:"malformed_policy" envconfig:"ANALYSIS_MALFORMED_POLICY"` // abort or skip
	PriceBreakFirst bool   `json:"price_break_first" envconfig:"ANALYSIS_PRICE_BREAK_FIRST"`
}

type LoggingConfig struct {
	Level  string `json:"level" envconfig:"LOG_LEVEL"` // debug, info, warn, error
	Pretty bool   `json:"pretty" envconfig:"LOG_PRETTY"`
}

// Default returns the built-in configuration. Load layers the config file
// and environment overrides on top of it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			Host:               "0.0.0.0",
			AllowedOrigins:     "*",
			RateLimitPerMinute: 120,
			MaxBarsPerRequest:  100000,
			ShutdownTimeout:    10,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "market_structure",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Enabled:        true,
			Address:        "localhost:6379",
			RunTTL:         time.Hour,
			FingerprintTTL: 24 * time.Hour,
		},
		Vault: VaultConfig{
			Enabled:    false,
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "market-structure-analyzer",
		},
		Auth: AuthConfig{
			Username:             "analyst",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
		},
		Analysis: AnalysisConfig{
			Horizon:         52,
			SMAShort:        10,
			SMALong:         30,
			TwelveBarWindow: 12,
			MalformedPolicy: "abort",
			PriceBreakFirst: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Load builds the effective configuration: defaults, then the JSON config
// file when present, then environment overrides (a .env file is loaded
// first when one exists; its absence is not an error).
func Load() (*Config, error) {
	return LoadFile(getEnvOrDefault("MSA_CONFIG_FILE", "config.json"))
}

// LoadFile is Load with an explicit config file path.
func LoadFile(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if data, err := os.ReadFile(filename); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", filename, err)
		}
	}

	if err := envconfig.Process("msa", cfg); err != nil {
		return nil, fmt.Errorf("error applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if p := c.Analysis.MalformedPolicy; p != "abort" && p != "skip" {
		return fmt.Errorf("invalid malformed bar policy %q", p)
	}
	if c.Analysis.SMAShort >= c.Analysis.SMALong {
		return fmt.Errorf("sma short period %d must be less than long period %d",
			c.Analysis.SMAShort, c.Analysis.SMALong)
	}
	if c.Analysis.Horizon <= 0 {
		return fmt.Errorf("invalid horizon %d", c.Analysis.Horizon)
	}
	if c.Analysis.TwelveBarWindow <= 0 {
		return fmt.Errorf("invalid twelve bar window %d", c.Analysis.TwelveBarWindow)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	cfg := Default()
	cfg.Auth.Password = "change_me"
	cfg.Auth.JWTSecret = "change_me_to_a_long_random_value"

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
