package vaultd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for vaultd.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	LogFile       string          `yaml:"log_file"`
	RPC           RPCConfig       `yaml:"rpc"`
	Signer        SignerConfig    `yaml:"signer"`
	Identity      string          `yaml:"identity"`
	SettleDelay   Duration        `yaml:"settle_delay"`
	PollInterval  Duration        `yaml:"poll_interval"`
	ConfirmDepth  uint64          `yaml:"confirm_depth"`
	Streams       []uint64        `yaml:"streams"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// RPCConfig locates the remote ledger endpoint and the vault deployment.
type RPCConfig struct {
	Endpoint string `yaml:"endpoint"`
	ChainID  uint64 `yaml:"chain_id"`
	// Contract overrides the built-in per-chain deployment table.
	Contract string `yaml:"contract"`
}

// SignerConfig locates the key used to sign submissions. Exactly one of the
// sources should be set; without any, vaultd runs read-only.
type SignerConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"`
	KeyEnv  string `yaml:"key_env"`
}

// RateLimitConfig throttles the action API per client address.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

const (
	defaultListenAddress = ":8980"
	defaultSettleDelay   = 750 * time.Millisecond
	defaultPollInterval  = 5 * time.Second
)

// LoadConfig reads and validates the YAML configuration at the given path.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(cfg.RPC.Endpoint) == "" {
		return Config{}, fmt.Errorf("vaultd: rpc.endpoint required")
	}
	if cfg.RPC.ChainID == 0 {
		return Config{}, fmt.Errorf("vaultd: rpc.chain_id required")
	}
	if cfg.SettleDelay.Duration <= 0 {
		cfg.SettleDelay.Duration = defaultSettleDelay
	}
	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval.Duration = defaultPollInterval
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 30
	}
	return cfg, nil
}

// ResolveSignerKey returns the hex-encoded signer key from the configured
// source, or empty when vaultd should run read-only.
func (c SignerConfig) ResolveSignerKey() (string, error) {
	if key := strings.TrimSpace(c.Key); key != "" {
		return key, nil
	}
	if env := strings.TrimSpace(c.KeyEnv); env != "" {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("vaultd: signer env %s is empty", env)
	}
	if file := strings.TrimSpace(c.KeyFile); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("vaultd: read signer key file: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return "", nil
}
