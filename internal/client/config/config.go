package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/dmitrijs2005/keynest/internal/common"
	"github.com/dmitrijs2005/keynest/internal/passgen"
)

// Config holds runtime settings for the Keynest CLI.
type Config struct {
	VaultPath string

	IdleTimeout    time.Duration
	SaveDebounce   time.Duration
	SavedDisplay   time.Duration
	ClipboardClear time.Duration
	ToastDuration  time.Duration
	MaxPasswordAge time.Duration

	PasswordLength int
	LogLevel       string
}

// DefaultVaultPath is the vault file under the XDG data directory.
func DefaultVaultPath() string {
	return filepath.Join(xdg.DataHome, common.AppName, "vault.db")
}

// LoadDefaults populates c with the built-in defaults.
func (c *Config) LoadDefaults() {
	c.VaultPath = DefaultVaultPath()
	c.IdleTimeout = 3 * time.Minute
	c.SaveDebounce = 400 * time.Millisecond
	c.SavedDisplay = 1200 * time.Millisecond
	c.ClipboardClear = 25 * time.Second
	c.ToastDuration = 1200 * time.Millisecond
	c.MaxPasswordAge = 180 * 24 * time.Hour
	c.PasswordLength = passgen.DefaultLength
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then the JSON file named by -c/-config in
// args (if any), then the flags in args. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
