package vault

import (
	"context"
	"fmt"
	"sync"

	"market-structure-analyzer/config"

	"github.com/hashicorp/vault/api"
)

// ServiceSecrets holds the secrets the service fetches at startup
type ServiceSecrets struct {
	DatabasePassword string `json:"database_password"`
	JWTSecret        string `json:"jwt_secret"`
	AuthPassword     string `json:"auth_password"`
}

// Client wraps the HashiCorp Vault client. When Vault is disabled the
// client falls back to the values already present in the configuration, so
// local development needs no Vault at all.
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu     sync.RWMutex
	cached *ServiceSecrets
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// GetServiceSecrets reads the service secret from the KV v2 mount. Reads are
// cached for the process lifetime; with Vault disabled the fallback values
// are returned instead.
func (c *Client) GetServiceSecrets(ctx context.Context, fallback ServiceSecrets) (*ServiceSecrets, error) {
	c.mu.RLock()
	if c.cached != nil {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return &fallback, nil
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service secrets from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("service secrets not found at %s", path)
	}

	// KV v2 nests the payload under data.data
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at %s", path)
	}

	secrets := &ServiceSecrets{
		DatabasePassword: getString(data, "database_password"),
		JWTSecret:        getString(data, "jwt_secret"),
		AuthPassword:     getString(data, "auth_password"),
	}
	if secrets.DatabasePassword == "" {
		secrets.DatabasePassword = fallback.DatabasePassword
	}
	if secrets.JWTSecret == "" {
		secrets.JWTSecret = fallback.JWTSecret
	}
	if secrets.AuthPassword == "" {
		secrets.AuthPassword = fallback.AuthPassword
	}

	c.mu.Lock()
	c.cached = secrets
	c.mu.Unlock()

	return secrets, nil
}

// ClearCache drops the cached secrets so the next read hits Vault again
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
