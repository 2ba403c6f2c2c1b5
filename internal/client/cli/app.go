package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/keynest/internal/client/config"
	"github.com/dmitrijs2005/keynest/internal/client/models"
	"github.com/dmitrijs2005/keynest/internal/client/services"
	"github.com/dmitrijs2005/keynest/internal/client/session"
	"github.com/dmitrijs2005/keynest/internal/common"
	"github.com/dmitrijs2005/keynest/internal/logging"
)

var (
	errUsage     = errors.New("usage")
	errAmbiguous = errors.New("id prefix matches several entries")
	errMismatch  = errors.New("passwords do not match")
)

// App is the interactive shell bound to one session.
type App struct {
	config *config.Config
	sess   *session.Session
	log    logging.Logger
	reader *bufio.Reader

	mu  sync.Mutex
	out io.Writer

	closeOnce sync.Once
}

// NewApp builds the session over backend and cb using the timings in c.
// Extra options are applied after the shell's own.
func NewApp(c *config.Config, backend session.Backend, cb session.Clipboard, log logging.Logger, opts ...session.Option) *App {
	a := &App{
		config: c,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
	options := append([]session.Option{
		session.WithLogger(log),
		session.WithLockHook(a.onLock),
	}, opts...)
	a.sess = session.New(backend, cb, sessionOptions(c), options...)
	return a
}

func sessionOptions(c *config.Config) session.Options {
	return session.Options{
		IdleTimeout:    c.IdleTimeout,
		SaveDebounce:   c.SaveDebounce,
		SavedDisplay:   c.SavedDisplay,
		ClipboardClear: c.ClipboardClear,
		ToastDuration:  c.ToastDuration,
		MaxPasswordAge: c.MaxPasswordAge,
	}
}

// Run greets the user, offers to unlock an existing vault and runs the
// command loop until EOF or "exit". The pending save is flushed and the
// session torn down on the way out.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.println("Welcome to Keynest (type 'help' for commands)")

	exists, err := a.sess.Exists(ctx)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	if exists {
		a.report(a.Unlock(ctx))
	} else {
		a.printf("No vault at %s. Type 'create' to make one.\n", a.config.VaultPath)
	}

	runREPL(ctx, a, a.reader)
	return nil
}

// Close saves pending changes and tears the session down. Only the first
// call has an effect.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		ctx := context.Background()
		if err := a.sess.Flush(ctx); err != nil {
			a.log.Error(ctx, "final save failed", "error", err)
		}
		if err := a.sess.Teardown(ctx); err != nil {
			a.log.Error(ctx, "teardown failed", "error", err)
		}
	})
}

func (a *App) onLock(reason session.LockReason) {
	if reason == session.LockReasonTimeout {
		a.println("\nVault locked after inactivity.")
	}
}

func (a *App) status() string {
	if a.sess.State() != session.StateUnlocked {
		return "locked"
	}
	if s := a.sess.SaveState(); s != session.SaveIdle {
		return s.String()
	}
	return "unlocked"
}

func (a *App) touch() {
	a.sess.Activity(session.ActivityKeyDown)
}

func (a *App) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) println(args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.out, args...)
}

// report prints err in user terms. Nil is ignored.
func (a *App) report(err error) {
	if err == nil {
		return
	}
	a.println("Error:", describe(err))
}

func describe(err error) string {
	switch {
	case errors.Is(err, session.ErrLocked):
		return "vault is locked, type 'unlock' first"
	case errors.Is(err, session.ErrAlreadyUnlocked):
		return "vault is already unlocked"
	case errors.Is(err, common.ErrUnauthorized):
		return "wrong master password"
	case errors.Is(err, services.ErrWeakMasterPassword):
		return fmt.Sprintf("master password must be at least %d characters", services.MinMasterPasswordLen)
	case errors.Is(err, services.ErrVaultExists):
		return "a vault already exists, use 'unlock'"
	case errors.Is(err, services.ErrVaultNotFound):
		return "no vault yet, use 'create'"
	}
	return err.Error()
}

// resolve maps an id or a unique id prefix to the full entry id.
func (a *App) resolve(prefix string) (string, error) {
	v, err := a.sess.Vault()
	if err != nil {
		return "", err
	}
	match := ""
	for _, e := range v.Entries {
		if e.ID == prefix {
			return e.ID, nil
		}
		if strings.HasPrefix(e.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", errAmbiguous, prefix)
			}
			match = e.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", models.ErrEntryNotFound, prefix)
	}
	return match, nil
}

// showToast prints the guard's current notification, if any.
func (a *App) showToast() {
	if msg, ok := a.sess.Toast(); ok {
		a.println(msg)
	}
}
