package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigDir returns the default config directory (~/.parkadmin).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".parkadmin"), nil
}

// DefaultConfigPath returns the default config file path (~/.parkadmin/config.yml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// CLIConfig holds the operator CLI's configuration.
type CLIConfig struct {
	BackendURL string      `yaml:"backend_url,omitempty"`
	APIToken   string      `yaml:"api_token,omitempty"`
	OAuth      OAuthConfig `yaml:"oauth,omitempty"`
	Timeout    string      `yaml:"timeout,omitempty"`
	Proxy      ProxyConfig `yaml:"proxy,omitempty"`
	PageSize   int         `yaml:"page_size,omitempty"`
}

// Validate checks that the configuration has required fields for operation.
func (c *CLIConfig) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend_url is required")
	}
	if c.APIToken == "" && !c.OAuth.Enabled() {
		return errors.New("api_token or oauth credentials are required")
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
		}
	}
	return c.Backend().Validate()
}

// IsConfigured returns true if a backend has been set.
func (c *CLIConfig) IsConfigured() bool {
	return c.BackendURL != "" && (c.APIToken != "" || c.OAuth.Enabled())
}

// Backend converts the file settings into a BackendConfig.
func (c *CLIConfig) Backend() BackendConfig {
	timeout := DefaultBackendTimeout
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		timeout = d
	}

	proxy := c.Proxy
	if !proxy.HasProxy() {
		proxy = ProxyFromEnv()
	}

	return BackendConfig{
		URL:     c.BackendURL,
		Token:   c.APIToken,
		OAuth:   c.OAuth,
		Timeout: timeout,
		Proxy:   proxy,
	}
}

// Load reads the configuration from the given path.
// If the file does not exist, an empty config is returned.
func Load(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &CLIConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads the configuration from the default path.
func LoadDefault() (*CLIConfig, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes the configuration to the given path, creating directories as needed.
func (c *CLIConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// the file holds credentials
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
