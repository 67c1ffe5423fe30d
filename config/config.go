package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config drives the register daemon: where it listens, where it persists, and
// the immutable identity of the ledger it controls.
type Config struct {
	ListenAddress   string  `toml:"ListenAddress"`
	DataDir         string  `toml:"DataDir"`
	Environment     string  `toml:"Environment"`
	LedgerName      string  `toml:"LedgerName"`
	LedgerSymbol    string  `toml:"LedgerSymbol"`
	OwnerKeystore   string  `toml:"OwnerKeystore"`
	LogFile         string  `toml:"LogFile,omitempty"`
	RateLimitPerMin float64 `toml:"RateLimitPerMin"`
	RateLimitBurst  int     `toml:"RateLimitBurst"`
}

const (
	defaultListenAddress = "127.0.0.1:8681"
	defaultDataDir       = "./data"
	defaultEnvironment   = "local"
	defaultRatePerMin    = 600
	defaultRateBurst     = 30
)

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = defaultEnvironment
	}
	if c.RateLimitPerMin <= 0 {
		c.RateLimitPerMin = defaultRatePerMin
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultRateBurst
	}
}

// Validate rejects configurations the daemon cannot start from.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LedgerName) == "" {
		return fmt.Errorf("config: LedgerName must be set")
	}
	if strings.TrimSpace(c.LedgerSymbol) == "" {
		return fmt.Errorf("config: LedgerSymbol must be set")
	}
	if strings.TrimSpace(c.OwnerKeystore) == "" {
		return fmt.Errorf("config: OwnerKeystore must be set")
	}
	return nil
}

// DatabasePath returns the LevelDB directory under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "register")
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:   defaultListenAddress,
		DataDir:         defaultDataDir,
		Environment:     defaultEnvironment,
		LedgerName:      "Example Ordinary Shares",
		LedgerSymbol:    "EXOS",
		OwnerKeystore:   "./keystore/owner.json",
		RateLimitPerMin: defaultRatePerMin,
		RateLimitBurst:  defaultRateBurst,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: write default file: %w", err)
	}
	return cfg, nil
}
