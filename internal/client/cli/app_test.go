package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/keynest/internal/client/clipboard"
	"github.com/dmitrijs2005/keynest/internal/client/config"
	"github.com/dmitrijs2005/keynest/internal/client/models"
	"github.com/dmitrijs2005/keynest/internal/client/services"
	"github.com/dmitrijs2005/keynest/internal/client/session"
	"github.com/dmitrijs2005/keynest/internal/client/storage"
	"github.com/dmitrijs2005/keynest/internal/clock"
	"github.com/dmitrijs2005/keynest/internal/common"
	"github.com/dmitrijs2005/keynest/internal/logging"
	"github.com/dmitrijs2005/keynest/internal/passgen"
)

const master = "correct horse battery"

var start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type testApp struct {
	*App
	out   *bytes.Buffer
	clock *clock.Fake
	cb    *clipboard.Memory
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.VaultPath = "test.db"

	clk := clock.NewFake(start)
	cb := clipboard.NewMemory()
	a := NewApp(cfg, services.NewVaultService(db, logging.Discard()), cb, logging.Discard(), session.WithClock(clk))

	out := &bytes.Buffer{}
	a.out = out
	a.reader = bufio.NewReader(strings.NewReader(""))
	t.Cleanup(a.Close)

	return &testApp{App: a, out: out, clock: clk, cb: cb}
}

func (ta *testApp) input(s string) {
	ta.reader = bufio.NewReader(strings.NewReader(s))
}

func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) {
		if len(pws) == 0 {
			return nil, errors.New("no more input")
		}
		pw := pws[0]
		pws = pws[1:]
		return []byte(pw), nil
	}
}

func created(t *testing.T) *testApp {
	t.Helper()
	ta := newTestApp(t)
	stubPasswords(t, master, master)
	require.NoError(t, ta.Create(context.Background()))
	ta.out.Reset()
	return ta
}

func (ta *testApp) add(t *testing.T, edit models.EntryEdit) models.VaultEntry {
	t.Helper()
	e, err := ta.sess.AddEntry(edit)
	require.NoError(t, err)
	return e
}

func TestApp_CreateUnlockLock(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)

	stubPasswords(t, master, master)
	require.NoError(t, ta.Create(ctx))
	assert.Contains(t, ta.out.String(), "Vault created and unlocked.")
	assert.Equal(t, "unlocked", ta.status())

	ta.add(t, models.EntryEdit{Title: "GitHub", Username: "alice", Password: "pw"})

	require.NoError(t, ta.Lock(ctx))
	assert.Equal(t, "locked", ta.status())
	require.ErrorIs(t, ta.List(nil), session.ErrLocked)

	stubPasswords(t, "wrong password")
	require.ErrorIs(t, ta.Unlock(ctx), common.ErrUnauthorized)

	ta.out.Reset()
	stubPasswords(t, master)
	require.NoError(t, ta.Unlock(ctx))
	assert.Contains(t, ta.out.String(), "Vault unlocked, 1 entries.")

	require.ErrorIs(t, ta.Unlock(ctx), session.ErrAlreadyUnlocked)
}

func TestApp_CreateRejectsMismatchAndShortPassword(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)

	stubPasswords(t, master, master+"x")
	require.ErrorIs(t, ta.Create(ctx), errMismatch)

	stubPasswords(t, "short", "short")
	require.ErrorIs(t, ta.Create(ctx), services.ErrWeakMasterPassword)
	assert.Equal(t, "locked", ta.status())
}

func TestApp_AddListShow(t *testing.T) {
	ta := created(t)
	ta.input("GitHub\nalice\nS3cure!pass-word-42\nline one\n\nwork, Dev\n\n")

	require.NoError(t, ta.Add())
	assert.Contains(t, ta.out.String(), "Added GitHub")

	v, err := ta.sess.Vault()
	require.NoError(t, err)
	require.Len(t, v.Entries, 1)
	e := v.Entries[0]
	assert.Equal(t, "alice", e.Username)
	assert.Equal(t, "S3cure!pass-word-42", e.Password)
	assert.Equal(t, "line one", e.Notes)
	assert.Equal(t, []string{"work", "dev"}, e.Tags)
	assert.Empty(t, e.TOTPSecret)

	ta.out.Reset()
	require.NoError(t, ta.List([]string{"git"}))
	assert.Contains(t, ta.out.String(), "GitHub")
	assert.Contains(t, ta.out.String(), shortID(e.ID))

	ta.out.Reset()
	require.NoError(t, ta.List([]string{"nothing"}))
	assert.Contains(t, ta.out.String(), "No entries.")

	ta.out.Reset()
	require.NoError(t, ta.Show([]string{shortID(e.ID)}))
	assert.NotContains(t, ta.out.String(), e.Password)
	assert.Contains(t, ta.out.String(), "Password: ********")

	ta.out.Reset()
	require.NoError(t, ta.Show([]string{shortID(e.ID), "-p"}))
	assert.Contains(t, ta.out.String(), e.Password)
}

func TestApp_AddGeneratesPassword(t *testing.T) {
	ta := created(t)
	ta.input("\n\n\n\n\n\n")

	require.NoError(t, ta.Add())

	v, err := ta.sess.Vault()
	require.NoError(t, err)
	require.Len(t, v.Entries, 1)
	assert.Equal(t, models.DefaultTitle, v.Entries[0].Title)
	assert.Len(t, v.Entries[0].Password, passgen.DefaultLength)
	assert.Contains(t, ta.out.String(), "Generated a new password.")
}

func TestApp_AddRejectsBadSecret(t *testing.T) {
	ta := created(t)
	ta.input("Bank\nbob\npw\n\n\nnot base32!\n")

	require.Error(t, ta.Add())

	v, err := ta.sess.Vault()
	require.NoError(t, err)
	assert.Empty(t, v.Entries)
}

func TestApp_Resolve(t *testing.T) {
	ta := created(t)

	ids := map[string]string{}
	var ambiguous string
	for i := 0; i < 17; i++ {
		e := ta.add(t, models.EntryEdit{Title: fmt.Sprintf("e%d", i)})
		p := e.ID[:1]
		if _, ok := ids[p]; ok && ambiguous == "" {
			ambiguous = p
		}
		ids[p] = e.ID
	}
	require.NotEmpty(t, ambiguous)

	_, err := ta.resolve(ambiguous)
	require.ErrorIs(t, err, errAmbiguous)

	_, err = ta.resolve("zzzz")
	require.ErrorIs(t, err, models.ErrEntryNotFound)

	v, err := ta.sess.Vault()
	require.NoError(t, err)
	id := v.Entries[0].ID
	got, err := ta.resolve(id[:shortIDLen])
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestApp_EditHistoryRestore(t *testing.T) {
	ta := created(t)
	e := ta.add(t, models.EntryEdit{Title: "Mail", Username: "bob", Password: "one", Notes: "n"})
	id := shortID(e.ID)

	ta.input("Webmail\n\ntwo\n-\n\n")
	require.NoError(t, ta.Edit([]string{id}))

	cur, err := ta.sess.Entry(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Webmail", cur.Title)
	assert.Equal(t, "bob", cur.Username)
	assert.Equal(t, "two", cur.Password)
	assert.Empty(t, cur.Notes)
	require.Len(t, cur.History, 1)

	ta.out.Reset()
	ta.input("\n\n\n\n\n")
	require.NoError(t, ta.Edit([]string{id}))
	assert.Contains(t, ta.out.String(), "No changes.")

	ta.out.Reset()
	require.NoError(t, ta.History([]string{id}))
	assert.Contains(t, ta.out.String(), "Mail")

	require.NoError(t, ta.Restore([]string{id, "0"}))
	cur, err = ta.sess.Entry(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mail", cur.Title)
	assert.Equal(t, "one", cur.Password)
	require.Len(t, cur.History, 2)
	assert.Equal(t, "Webmail", cur.History[0].Title)

	require.ErrorIs(t, ta.Restore([]string{id, "5"}), models.ErrHistoryIndex)
	require.ErrorIs(t, ta.Restore([]string{id, "x"}), errUsage)
}

func TestApp_TagUntag(t *testing.T) {
	ta := created(t)
	e := ta.add(t, models.EntryEdit{Title: "Mail"})
	id := shortID(e.ID)

	require.NoError(t, ta.Tag([]string{id, "Work,", "Personal"}))
	cur, err := ta.sess.Entry(e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "personal"}, cur.Tags)

	require.NoError(t, ta.Untag([]string{id, "WORK"}))
	cur, err = ta.sess.Entry(e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"personal"}, cur.Tags)

	require.ErrorIs(t, ta.Tag([]string{id}), errUsage)
}

func TestApp_Delete(t *testing.T) {
	ta := created(t)
	e := ta.add(t, models.EntryEdit{Title: "Mail"})

	ta.input("n\n")
	require.NoError(t, ta.Delete([]string{shortID(e.ID)}))
	_, err := ta.sess.Entry(e.ID)
	require.NoError(t, err)

	ta.input("y\n")
	require.NoError(t, ta.Delete([]string{shortID(e.ID)}))
	_, err = ta.sess.Entry(e.ID)
	require.ErrorIs(t, err, models.ErrEntryNotFound)
}

func TestApp_CopyPasswordIsClearedLater(t *testing.T) {
	ta := created(t)
	e := ta.add(t, models.EntryEdit{Title: "Mail", Username: "bob", Password: "hunter22"})

	require.NoError(t, ta.Copy([]string{"password", shortID(e.ID)}))
	assert.Equal(t, "hunter22", ta.cb.Text())
	assert.Contains(t, ta.out.String(), "Copied password to clipboard")
	assert.True(t, ta.sess.ClipboardPending())

	ta.clock.Advance(ta.config.ClipboardClear)
	assert.Empty(t, ta.cb.Text())

	require.NoError(t, ta.Copy([]string{"username", shortID(e.ID)}))
	assert.Equal(t, "bob", ta.cb.Text())

	require.ErrorIs(t, ta.Copy([]string{"otp", shortID(e.ID)}), session.ErrNoTOTP)
	require.ErrorIs(t, ta.Copy([]string{"notes", shortID(e.ID)}), errUsage)
}

func TestApp_CopyFailureShowsToast(t *testing.T) {
	ta := created(t)
	e := ta.add(t, models.EntryEdit{Title: "Mail", Password: "pw"})
	ta.cb.FailWrites(true)

	require.Error(t, ta.Copy([]string{"password", shortID(e.ID)}))
	assert.Contains(t, ta.out.String(), "Failed to copy")
}

func TestApp_IdleLockPrintsNotice(t *testing.T) {
	ta := created(t)

	ta.clock.Advance(ta.config.IdleTimeout - time.Second)
	ta.touch()
	ta.clock.Advance(ta.config.IdleTimeout - time.Second)
	assert.Equal(t, session.StateUnlocked, ta.sess.State())

	ta.clock.Advance(time.Second)
	assert.Equal(t, session.StateLocked, ta.sess.State())
	assert.Contains(t, ta.out.String(), "Vault locked after inactivity.")
}

func TestApp_LockFlushesPendingSave(t *testing.T) {
	ctx := context.Background()
	ta := created(t)
	ta.add(t, models.EntryEdit{Title: "Mail"})
	assert.Equal(t, "saving", ta.status())

	require.NoError(t, ta.Lock(ctx))

	stubPasswords(t, master)
	require.NoError(t, ta.Unlock(ctx))
	v, err := ta.sess.Vault()
	require.NoError(t, err)
	assert.Len(t, v.Entries, 1)
}

func TestApp_Gen(t *testing.T) {
	ta := created(t)

	require.NoError(t, ta.Gen([]string{"-n", "12", "-no-symbols"}))
	fields := strings.Fields(ta.out.String())
	require.NotEmpty(t, fields)
	assert.Len(t, fields[0], 12)
	assert.Regexp(t, `^[A-Za-z0-9]+$`, fields[0])

	err := ta.Gen([]string{"-no-lower", "-no-upper", "-no-numbers", "-no-symbols"})
	require.ErrorIs(t, err, passgen.ErrNoCharacterClasses)

	require.ErrorIs(t, ta.Gen([]string{"-bogus"}), errUsage)

	ta.out.Reset()
	require.NoError(t, ta.Gen([]string{"-copy"}))
	assert.Len(t, ta.cb.Text(), ta.config.PasswordLength)
	assert.NotContains(t, ta.out.String(), ta.cb.Text())
}

func TestApp_ImportOTPAndTOTP(t *testing.T) {
	ctx := context.Background()
	ta := created(t)
	e := ta.add(t, models.EntryEdit{Title: "Example", Password: "pw"})
	id := shortID(e.ID)

	uri := "otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example"
	require.NoError(t, ta.ImportOTP([]string{id, uri}))

	cur, err := ta.sess.Entry(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", cur.TOTPSecret)
	assert.Equal(t, "Example", cur.TOTPIssuer)

	ta.out.Reset()
	require.NoError(t, ta.TOTP(ctx, []string{id}))
	assert.Regexp(t, regexp.MustCompile(`^\d{6}  \(30s left\)`), ta.out.String())

	ta.out.Reset()
	require.NoError(t, ta.TOTP(ctx, []string{id, "watch", "1"}))
	assert.Equal(t, 1, strings.Count(ta.out.String(), "\n"))

	require.ErrorIs(t, ta.TOTP(ctx, []string{id, "later"}), errUsage)
	require.Error(t, ta.ImportOTP([]string{id, "otpauth://hotp/x?secret=JBSWY3DPEHPK3PXP"}))
}

func TestApp_Health(t *testing.T) {
	ta := created(t)

	require.NoError(t, ta.Health())
	assert.Contains(t, ta.out.String(), "No issues found.")

	ta.add(t, models.EntryEdit{Title: "Weak one", Password: "password"})
	ta.out.Reset()
	require.NoError(t, ta.Health())
	out := ta.out.String()
	assert.Contains(t, out, "Weak one")
	assert.Contains(t, out, "Weak")
	assert.Contains(t, out, "No 2FA")
}

func TestApp_StatusAndDispatch(t *testing.T) {
	ctx := context.Background()
	ta := created(t)

	require.NoError(t, ta.dispatch(ctx, "status", nil))
	out := ta.out.String()
	assert.Contains(t, out, "test.db (exists: true)")
	assert.Contains(t, out, "State:     unlocked")
	assert.Contains(t, out, "Clipboard: clean")

	require.ErrorIs(t, ta.dispatch(ctx, "show", nil), errUsage)
	require.Error(t, ta.dispatch(ctx, "frobnicate", nil))
}

func TestApp_RunWithoutVault(t *testing.T) {
	captureREPL(t)
	ta := newTestApp(t)
	ta.input("status\nexit\n")

	require.NoError(t, ta.Run(context.Background()))
	assert.Contains(t, ta.out.String(), "No vault at test.db")
	assert.Contains(t, ta.out.String(), "exists: false")
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{session.ErrLocked, "vault is locked, type 'unlock' first"},
		{fmt.Errorf("unlock: %w", common.ErrUnauthorized), "wrong master password"},
		{services.ErrWeakMasterPassword, "master password must be at least 8 characters"},
		{services.ErrVaultExists, "a vault already exists, use 'unlock'"},
		{errors.New("other"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describe(tt.err))
	}
}
