package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/keynest/internal/flagx"
	"github.com/dmitrijs2005/keynest/internal/timex"
)

// JsonConfig is the on-disk form of Config.
type JsonConfig struct {
	VaultPath      string         `json:"vault_path"`
	IdleTimeout    timex.Duration `json:"idle_timeout"`
	SaveDebounce   timex.Duration `json:"save_debounce"`
	SavedDisplay   timex.Duration `json:"saved_display"`
	ClipboardClear timex.Duration `json:"clipboard_clear"`
	ToastDuration  timex.Duration `json:"toast_duration"`
	MaxPasswordAge timex.Duration `json:"max_password_age"`
	PasswordLength int            `json:"password_length"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays cfg with the non-zero fields of the JSON file named
// by -c or -config. Without either flag it does nothing.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.VaultPath != "" {
		cfg.VaultPath = jc.VaultPath
	}
	overlay(&cfg.IdleTimeout, jc.IdleTimeout)
	overlay(&cfg.SaveDebounce, jc.SaveDebounce)
	overlay(&cfg.SavedDisplay, jc.SavedDisplay)
	overlay(&cfg.ClipboardClear, jc.ClipboardClear)
	overlay(&cfg.ToastDuration, jc.ToastDuration)
	overlay(&cfg.MaxPasswordAge, jc.MaxPasswordAge)
	if jc.PasswordLength > 0 {
		cfg.PasswordLength = jc.PasswordLength
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	return nil
}

func overlay(dst *time.Duration, src timex.Duration) {
	if src.Duration > 0 {
		*dst = src.Duration
	}
}
