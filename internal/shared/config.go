package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Remote      RemoteConfig      `toml:"remote"`
	Database    DatabaseConfig    `toml:"database"`
	Engine      EngineConfig      `toml:"engine"`
	Dialog      DialogConfig      `toml:"dialog"`
}

// CredentialsConfig holds the shared default account credential.
//
// Per-user credentials live in the accounts table, not in the config file.
type CredentialsConfig struct {
	DefaultToken string `toml:"default_token"`
}

// RemoteConfig contains music service API settings.
type RemoteConfig struct {
	BaseURL            string  `toml:"base_url"`
	RateLimit          float64 `toml:"rate_limit"`
	HandshakeAttempts  int     `toml:"handshake_attempts"`
	HandshakeBaseDelay int     `toml:"handshake_base_delay_ms"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// EngineConfig contains mutation engine settings.
type EngineConfig struct {
	MutationAttempts int `toml:"mutation_attempts"`
}

// DialogConfig contains conversation state settings.
type DialogConfig struct {
	TTLMinutes int `toml:"ttl_minutes"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
