// Package config loads runtime configuration for the Keynest CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-d string   path of the vault database file
//	-idle int   idle auto-lock timeout (seconds)
//	-clear int  clipboard auto-clear delay (seconds)
//	-l string   log level: debug, info, warn, error
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "3m" or
// integer nanoseconds. Absent or zero fields keep their defaults:
//
//	{
//	  "vault_path": "/home/me/.local/share/keynest/vault.db",
//	  "idle_timeout": "3m",
//	  "save_debounce": "400ms",
//	  "saved_display": "1.2s",
//	  "clipboard_clear": "25s",
//	  "toast_duration": "1.2s",
//	  "max_password_age": "4320h",
//	  "password_length": 20,
//	  "log_level": "info"
//	}
package config
