package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dmitrijs2005/keynest/internal/client/session"
	"github.com/dmitrijs2005/keynest/internal/common"
)

// dispatch runs one command. help, exit and quit are handled by the REPL.
func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "create":
		return a.Create(ctx)
	case "unlock":
		return a.Unlock(ctx)
	case "lock":
		return a.Lock(ctx)
	case "status":
		return a.Status(ctx)
	case "l", "list":
		return a.List(args)
	case "show":
		return a.Show(args)
	case "add":
		return a.Add()
	case "edit":
		return a.Edit(args)
	case "delete", "rm":
		return a.Delete(args)
	case "history":
		return a.History(args)
	case "restore":
		return a.Restore(args)
	case "tag":
		return a.Tag(args)
	case "untag":
		return a.Untag(args)
	case "copy", "cp":
		return a.Copy(args)
	case "gen":
		return a.Gen(args)
	case "totp":
		return a.TOTP(ctx, args)
	case "import-otp":
		return a.ImportOTP(args)
	case "health":
		return a.Health()
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

// Create asks for a new master password twice and creates the vault.
func (a *App) Create(ctx context.Context) error {
	pw, err := GetPassword("New master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	again, err := GetPassword("Repeat master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)

	if !bytes.Equal(pw, again) {
		return errMismatch
	}
	if err := a.sess.Create(ctx, pw); err != nil {
		return err
	}
	a.println("Vault created and unlocked.")
	return nil
}

// Unlock asks for the master password and opens the vault.
func (a *App) Unlock(ctx context.Context) error {
	if a.sess.State() == session.StateUnlocked {
		return session.ErrAlreadyUnlocked
	}
	pw, err := GetPassword("Master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.sess.Unlock(ctx, pw); err != nil {
		return err
	}
	v, err := a.sess.Vault()
	if err != nil {
		return err
	}
	a.printf("Vault unlocked, %d entries.\n", len(v.Entries))
	return nil
}

// Lock saves pending changes and locks the vault.
func (a *App) Lock(ctx context.Context) error {
	if a.sess.State() != session.StateUnlocked {
		a.println("Vault is already locked.")
		return nil
	}
	if err := a.sess.Flush(ctx); err != nil {
		a.log.Error(ctx, "save before lock failed", "error", err)
	}
	if err := a.sess.Lock(ctx, session.LockReasonManual); err != nil {
		return err
	}
	a.println("Vault locked.")
	return nil
}

// Status prints the vault, save and clipboard state.
func (a *App) Status(ctx context.Context) error {
	exists, err := a.sess.Exists(ctx)
	if err != nil {
		return err
	}
	a.printf("Vault:     %s (exists: %t)\n", a.config.VaultPath, exists)
	a.printf("State:     %s\n", a.sess.State())
	a.printf("Save:      %s\n", a.sess.SaveState())
	a.printf("Clipboard: %s\n", clipboardStatus(a.sess.ClipboardPending()))
	if v, err := a.sess.Vault(); err == nil {
		a.printf("Entries:   %d\n", len(v.Entries))
	}
	return nil
}

func clipboardStatus(pending bool) string {
	if pending {
		return "will be cleared"
	}
	return "clean"
}
