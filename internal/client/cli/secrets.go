package cli

import (
	"context"
	"errors"
	"flag"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dmitrijs2005/keynest/internal/health"
	"github.com/dmitrijs2005/keynest/internal/otp"
	"github.com/dmitrijs2005/keynest/internal/passgen"
	"github.com/dmitrijs2005/keynest/internal/strength"
)

// Copy puts an entry's password, username or current code on the
// clipboard. It is cleared again after the configured delay.
func (a *App) Copy(args []string) error {
	if len(args) != 2 {
		return usage("copy password|username|otp <id>")
	}
	id, err := a.resolve(args[1])
	if err != nil {
		return err
	}

	switch args[0] {
	case "password", "pw":
		err = a.sess.CopyPassword(id)
	case "username", "user":
		err = a.sess.CopyUsername(id)
	case "otp", "code":
		err = a.sess.CopyOTP(id)
	default:
		return usage("copy password|username|otp <id>")
	}
	a.showToast()
	return err
}

// Gen prints a new password. It works while locked.
func (a *App) Gen(args []string) error {
	opts := passgen.DefaultOptions()

	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&opts.Length, "n", a.config.PasswordLength, "length")
	noLower := fs.Bool("no-lower", false, "exclude lowercase letters")
	noUpper := fs.Bool("no-upper", false, "exclude uppercase letters")
	noNumbers := fs.Bool("no-numbers", false, "exclude digits")
	noSymbols := fs.Bool("no-symbols", false, "exclude symbols")
	copyIt := fs.Bool("copy", false, "copy instead of printing")
	if err := fs.Parse(args); err != nil {
		return usage("gen [-n len] [-no-lower] [-no-upper] [-no-numbers] [-no-symbols] [-copy]")
	}
	opts.Lower = !*noLower
	opts.Upper = !*noUpper
	opts.Numbers = !*noNumbers
	opts.Symbols = !*noSymbols

	pw, err := a.sess.GeneratePassword(opts)
	if err != nil {
		return err
	}
	label := strength.Label(a.sess.Strength(pw))
	if *copyIt {
		err := a.sess.CopyText(pw, "password")
		a.showToast()
		if err != nil {
			return err
		}
		a.printf("Strength: %s\n", label)
		return nil
	}
	a.printf("%s  (%s)\n", pw, label)
	return nil
}

const defaultWatchSeconds = otp.Period

// TOTP prints an entry's current code. With "watch" it prints a fresh
// line every second for the given number of seconds.
func (a *App) TOTP(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 3 || (len(args) > 1 && args[1] != "watch") {
		return usage("totp <id> [watch [seconds]]")
	}
	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	if len(args) == 1 {
		code, err := a.sess.TOTP(id)
		if err != nil {
			return err
		}
		a.printf("%s  (%ds left)\n", code.Code, code.Remaining)
		return nil
	}

	ticks := defaultWatchSeconds
	if len(args) == 3 {
		if ticks, err = strconv.Atoi(args[2]); err != nil || ticks <= 0 {
			return usage("totp <id> [watch [seconds]]")
		}
	}
	return a.watch(ctx, id, ticks)
}

func (a *App) watch(ctx context.Context, id string, ticks int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failed error
	seen := 0
	err := a.sess.WatchTOTP(ctx, id, func(code otp.Code, err error) {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failed = err
			cancel()
			return
		}
		a.printf("%s  (%2ds left)\n", code.Code, code.Remaining)
		seen++
		if seen >= ticks {
			cancel()
		}
	})
	if failed != nil {
		return failed
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ImportOTP sets an entry's TOTP parameters from an otpauth:// URI.
func (a *App) ImportOTP(args []string) error {
	if len(args) != 2 {
		return usage("import-otp <id> <otpauth-uri>")
	}
	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	e, err := a.sess.ImportOTP(id, args[1])
	if err != nil {
		return err
	}
	a.printf("2FA enabled for %s.\n", e.Title)
	return nil
}

var issueLabels = map[health.IssueType]string{
	health.IssueWeak:   "Weak",
	health.IssueReused: "Reused",
	health.IssueOld:    "Old",
	health.IssueNo2FA:  "No 2FA",
}

// Health prints the vault health report grouped by entry.
func (a *App) Health() error {
	report, err := a.sess.Health()
	if err != nil {
		return err
	}
	if report.Summary.Total() == 0 {
		a.println("No issues found.")
		return nil
	}

	v, err := a.sess.Vault()
	if err != nil {
		return err
	}
	titles := make(map[string]string, len(v.Entries))
	for _, e := range v.Entries {
		titles[e.ID] = e.Title
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Title", "Issue", "Detail"})
	for _, group := range report.ByEntry() {
		for _, issue := range group.Issues {
			t.AppendRow(table.Row{shortID(group.EntryID), titles[group.EntryID], issueLabels[issue.Type], issue.Detail})
		}
	}
	t.AppendFooter(table.Row{"", "Total", report.Summary.Total(), summaryLine(report.Summary)})
	a.println(t.Render())
	return nil
}

func summaryLine(s health.Summary) string {
	parts := []string{
		strconv.Itoa(s.Weak) + " weak",
		strconv.Itoa(s.Reused) + " reused",
		strconv.Itoa(s.Old) + " old",
		strconv.Itoa(s.No2FA) + " without 2FA",
	}
	return strings.Join(parts, ", ")
}
