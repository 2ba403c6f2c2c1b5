package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/keynest/internal/flagx"
)

var errNonPositive = errors.New("must be a positive number of seconds")

// parseFlags populates Config fields from the flags in args it owns; see
// the package documentation for the list. Other arguments are ignored and
// flags that are not given leave cfg unchanged.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-idle", "-clear", "-l"})

	fs := flag.NewFlagSet("keynest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.VaultPath, "d", cfg.VaultPath, "vault database file")
	idle := fs.Int("idle", 0, "idle auto-lock timeout (in seconds)")
	clearSecs := fs.Int("clear", 0, "clipboard auto-clear delay (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "idle":
			err = errors.Join(err, setSeconds(&cfg.IdleTimeout, f.Name, *idle))
		case "clear":
			err = errors.Join(err, setSeconds(&cfg.ClipboardClear, f.Name, *clearSecs))
		}
	})
	return err
}

func setSeconds(dst *time.Duration, name string, secs int) error {
	if secs <= 0 {
		return fmt.Errorf("parse flags: -%s %w", name, errNonPositive)
	}
	*dst = time.Duration(secs) * time.Second
	return nil
}
