package session

import (
	"context"
	"time"

	"github.com/dmitrijs2005/keynest/internal/client/models"
	"github.com/dmitrijs2005/keynest/internal/health"
	"github.com/dmitrijs2005/keynest/internal/otp"
	"github.com/dmitrijs2005/keynest/internal/passgen"
)

// Vault returns a deep copy of the open vault.
func (s *Session) Vault() (*models.VaultData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrLocked
	}
	return s.vault.Clone(), nil
}

// Search returns copies of the entries matching query; see
// models.VaultData.Search.
func (s *Session) Search(query string) ([]models.VaultEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrLocked
	}
	return s.vault.Search(query), nil
}

// Entry returns a copy of the entry with id.
func (s *Session) Entry(id string) (models.VaultEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return models.VaultEntry{}, ErrLocked
	}
	e, ok := s.vault.Find(id)
	if !ok {
		return models.VaultEntry{}, models.ErrEntryNotFound
	}
	return e.Clone(), nil
}

// mutate applies fn to the open vault and schedules a save when fn
// reports a change.
func (s *Session) mutate(fn func(v *models.VaultData) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return ErrLocked
	}
	changed, err := fn(s.vault)
	if err != nil {
		return err
	}
	if changed {
		s.saver.Schedule(s.epoch)
	}
	return nil
}

// AddEntry creates an entry from edit and puts it first in the vault.
func (s *Session) AddEntry(edit models.EntryEdit) (models.VaultEntry, error) {
	var out models.VaultEntry
	err := s.mutate(func(v *models.VaultData) (bool, error) {
		e, err := models.NewEntryFrom(edit, s.clock.Now())
		if err != nil {
			return false, err
		}
		v.Upsert(e)
		out = e.Clone()
		return true, nil
	})
	return out, err
}

// UpdateEntry applies edit to the entry with id as a new revision.
func (s *Session) UpdateEntry(id string, edit models.EntryEdit) (models.VaultEntry, error) {
	return s.revise(id, func(e *models.VaultEntry) (bool, error) {
		return e.Revise(edit, s.clock.Now())
	})
}

// EditEntry is UpdateEntry with the edit derived from the entry's current
// content by fn.
func (s *Session) EditEntry(id string, fn func(edit *models.EntryEdit)) (models.VaultEntry, error) {
	return s.revise(id, func(e *models.VaultEntry) (bool, error) {
		edit := e.Edit()
		fn(&edit)
		return e.Revise(edit, s.clock.Now())
	})
}

// RestoreVersion makes history item n of the entry current.
func (s *Session) RestoreVersion(id string, n int) (models.VaultEntry, error) {
	return s.revise(id, func(e *models.VaultEntry) (bool, error) {
		if err := e.RestoreVersion(n, s.clock.Now()); err != nil {
			return false, err
		}
		return true, nil
	})
}

// ImportOTP sets the entry's TOTP parameters from an otpauth URI.
func (s *Session) ImportOTP(id, uri string) (models.VaultEntry, error) {
	params, err := otp.ParseURI(uri)
	if err != nil {
		return models.VaultEntry{}, err
	}
	return s.EditEntry(id, func(edit *models.EntryEdit) {
		edit.TOTPSecret = params.Secret
		edit.TOTPIssuer = params.Issuer
		edit.TOTPAccount = params.Account
	})
}

func (s *Session) revise(id string, fn func(e *models.VaultEntry) (bool, error)) (models.VaultEntry, error) {
	var out models.VaultEntry
	err := s.mutate(func(v *models.VaultData) (bool, error) {
		e, ok := v.Find(id)
		if !ok {
			return false, models.ErrEntryNotFound
		}
		changed, err := fn(e)
		if err != nil {
			return false, err
		}
		out = e.Clone()
		return changed, nil
	})
	return out, err
}

func (s *Session) DeleteEntry(id string) error {
	return s.mutate(func(v *models.VaultData) (bool, error) {
		if err := v.Delete(id); err != nil {
			return false, err
		}
		return true, nil
	})
}

// CopyText copies an arbitrary value under the clipboard guard.
func (s *Session) CopyText(text, label string) error {
	return s.exposure.Copy(text, label)
}

func (s *Session) CopyPassword(id string) error {
	e, err := s.Entry(id)
	if err != nil {
		return err
	}
	return s.exposure.Copy(e.Password, "password")
}

func (s *Session) CopyUsername(id string) error {
	e, err := s.Entry(id)
	if err != nil {
		return err
	}
	return s.exposure.Copy(e.Username, "username")
}

// CopyOTP copies the entry's current one-time code.
func (s *Session) CopyOTP(id string) error {
	code, err := s.TOTP(id)
	if err != nil {
		return err
	}
	return s.exposure.Copy(code.Code, "code")
}

// ClipboardPending reports whether a clipboard clear is scheduled.
func (s *Session) ClipboardPending() bool { return s.exposure.Pending() }

// TOTP derives the entry's code at the current time.
func (s *Session) TOTP(id string) (otp.Code, error) {
	e, err := s.Entry(id)
	if err != nil {
		return otp.Code{}, err
	}
	if e.TOTPSecret == "" {
		return otp.Code{}, ErrNoTOTP
	}
	return otp.Generate(e.TOTPSecret, e.TOTPIssuer, e.TOTPAccount, s.clock.Now())
}

const timeStep = time.Second

// WatchTOTP calls fn with the entry's code once per second until ctx is
// done.
func (s *Session) WatchTOTP(ctx context.Context, id string, fn func(otp.Code, error)) error {
	return otp.Watch(ctx, s.clock, timeStep, func(_ time.Time) {
		fn(s.TOTP(id))
	})
}

// GeneratePassword returns a new password. It does not require an
// unlocked vault.
func (s *Session) GeneratePassword(opts passgen.Options) (string, error) {
	return s.gen.Generate(opts)
}

// Strength scores a password for display.
func (s *Session) Strength(password string) int {
	return s.estimator.Score(password)
}

// Health analyses the open vault as of now.
func (s *Session) Health() (health.Report, error) {
	s.mu.Lock()
	if s.state != StateUnlocked {
		s.mu.Unlock()
		return health.Report{}, ErrLocked
	}
	entries := s.vault.Clone().Entries
	s.mu.Unlock()

	return s.analyzer.Analyse(entries, s.clock.Now()), nil
}
