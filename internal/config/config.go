package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all ideaforge configuration
type Config struct {
	StateDir          string        `toml:"state_dir"`
	TemplateDir       string        `toml:"template_dir"` // empty = embedded defaults
	MaxAttempts       int           `toml:"max_attempts"`
	MaxUserRounds     int           `toml:"max_user_rounds"`
	RefineConcurrency int           `toml:"refine_concurrency"`
	CodebaseMaxChars  int           `toml:"codebase_max_chars"`
	LockTimeout       string        `toml:"lock_timeout"`
	Wrappers          []string      `toml:"wrappers"`
	Gateway           GatewayConfig `toml:"gateway"`
}

// GatewayConfig holds settings for the LLM backend
type GatewayConfig struct {
	Provider       string  `toml:"provider"` // "openai" or "claude-cli"
	Model          string  `toml:"model"`
	BaseURL        string  `toml:"base_url"`
	APIKeyEnv      string  `toml:"api_key_env"`
	ClaudePath     string  `toml:"claude_path"` // Use PATH when empty
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	MaxRetries     int     `toml:"max_retries"`
	RetryBaseDelay string  `toml:"retry_base_delay"`
	RequestTimeout string  `toml:"request_timeout"`
}

// Default returns the default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		StateDir:          filepath.Join(homeDir, ".ideaforge", "projects"),
		TemplateDir:       "",
		MaxAttempts:       3,
		MaxUserRounds:     5,
		RefineConcurrency: 3,
		CodebaseMaxChars:  10000,
		LockTimeout:       "30s",
		Wrappers:          nil,
		Gateway: GatewayConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			APIKeyEnv:      "OPENAI_API_KEY",
			Temperature:    0.7,
			MaxRetries:     3,
			RetryBaseDelay: "2s",
			RequestTimeout: "5m",
		},
	}
}

// LockTimeoutDuration returns the lock timeout as a duration
func (c *Config) LockTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// RetryBaseDelayDuration returns the initial retry backoff as a duration
func (g *GatewayConfig) RetryBaseDelayDuration() time.Duration {
	d, err := time.ParseDuration(g.RetryBaseDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// RequestTimeoutDuration returns the per-request timeout as a duration
func (g *GatewayConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(g.RequestTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// Load reads configuration from the config file
func Load() (*Config, error) {
	cfg := Default()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}

	configPath := filepath.Join(homeDir, ".ideaforge", "config.toml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand ~ in StateDir
	if len(cfg.StateDir) > 0 && cfg.StateDir[0] == '~' {
		cfg.StateDir = filepath.Join(homeDir, cfg.StateDir[1:])
	}

	return cfg, nil
}

// Save writes configuration to the config file
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".ideaforge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.toml")
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// ConfigDir returns the ideaforge config directory path
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".ideaforge")
}
