// Package services contains the Keynest client's storage backend: the
// encrypted vault held in the local SQLite database.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/keynest/internal/client/models"
	"github.com/dmitrijs2005/keynest/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/keynest/internal/common"
	"github.com/dmitrijs2005/keynest/internal/cryptox"
	"github.com/dmitrijs2005/keynest/internal/dbx"
	"github.com/dmitrijs2005/keynest/internal/logging"
)

// MinMasterPasswordLen is the shortest master password InitVault accepts,
// in bytes.
const MinMasterPasswordLen = 8

var (
	ErrVaultExists        = errors.New("vault already exists")
	ErrVaultNotFound      = fmt.Errorf("vault %w", common.ErrorNotFound)
	ErrVaultLocked        = errors.New("vault is locked")
	ErrWeakMasterPassword = fmt.Errorf("master password must be at least %d characters", MinMasterPasswordLen)
)

// VaultService persists the vault document encrypted under a key derived
// from the master password, and holds that key while the vault is
// unlocked.
//
// Contract:
//   - InitVault creates a new empty vault and leaves it unlocked.
//   - UnlockVault verifies the master password and returns the stored vault.
//   - SaveVault and LoadVault require an unlocked vault.
//   - LockVault forgets the key; it is idempotent.
type VaultService interface {
	VaultExists(ctx context.Context) (bool, error)
	InitVault(ctx context.Context, masterPassword []byte) error
	UnlockVault(ctx context.Context, masterPassword []byte) (*models.VaultData, error)
	LockVault(ctx context.Context) error
	SaveVault(ctx context.Context, vault *models.VaultData) error
	LoadVault(ctx context.Context) (*models.VaultData, error)
}

type vaultService struct {
	db  *sql.DB
	log logging.Logger

	mu   sync.Mutex
	key  []byte
	salt []byte
}

// NewVaultService returns a VaultService over a migrated database.
func NewVaultService(db *sql.DB, log logging.Logger) VaultService {
	return &vaultService{db: db, log: log}
}

func (s *vaultService) repo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (s *vaultService) VaultExists(ctx context.Context) (bool, error) {
	ok, err := s.repo(s.db).Has(ctx, metadata.KeyVerifier)
	if err != nil {
		return false, fmt.Errorf("vault lookup error: %w", err)
	}
	return ok, nil
}

// InitVault generates a salt, derives the master key and writes salt,
// verifier and an encrypted empty vault in one transaction.
func (s *vaultService) InitVault(ctx context.Context, masterPassword []byte) error {
	if len(masterPassword) < MinMasterPasswordLen {
		return ErrWeakMasterPassword
	}

	exists, err := s.VaultExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return ErrVaultExists
	}

	salt := cryptox.NewSalt()
	key := cryptox.DeriveMasterKey(masterPassword, salt)

	ciphertext, nonce, err := cryptox.Seal(models.NewVaultData(), key)
	if err != nil {
		common.WipeByteArray(key)
		return fmt.Errorf("vault encryption error: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		if ok, err := repo.Has(ctx, metadata.KeyVerifier); err != nil {
			return err
		} else if ok {
			return ErrVaultExists
		}
		for k, v := range map[metadata.Key][]byte{
			metadata.KeySalt:       salt,
			metadata.KeyVerifier:   cryptox.MakeVerifier(key),
			metadata.KeyVault:      ciphertext,
			metadata.KeyVaultNonce: nonce,
		} {
			if err := repo.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		common.WipeByteArray(key)
		if errors.Is(err, ErrVaultExists) {
			return err
		}
		return fmt.Errorf("vault init error: %w", err)
	}

	s.hold(key, salt)
	s.log.Info(ctx, "vault created")
	return nil
}

// UnlockVault returns common.ErrUnauthorized when the password does not
// match the stored verifier.
func (s *vaultService) UnlockVault(ctx context.Context, masterPassword []byte) (*models.VaultData, error) {
	repo := s.repo(s.db)

	verifier, err := repo.Get(ctx, metadata.KeyVerifier)
	if err != nil {
		return nil, fmt.Errorf("vault read error: %w", err)
	}
	if verifier == nil {
		return nil, ErrVaultNotFound
	}
	salt, err := repo.Get(ctx, metadata.KeySalt)
	if err != nil {
		return nil, fmt.Errorf("vault read error: %w", err)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: salt missing", common.ErrInternal)
	}

	key := cryptox.DeriveMasterKey(masterPassword, salt)
	if !cryptox.CheckVerifier(key, verifier) {
		common.WipeByteArray(key)
		s.log.Warn(ctx, "vault unlock rejected")
		return nil, common.ErrUnauthorized
	}

	vault, err := s.read(ctx, s.repo(s.db), key)
	if err != nil {
		common.WipeByteArray(key)
		return nil, err
	}
	if vault == nil {
		vault = models.NewVaultData()
	}

	s.hold(key, salt)
	s.log.Info(ctx, "vault unlocked", "entries", len(vault.Entries))
	return vault, nil
}

func (s *vaultService) LockVault(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return nil
	}
	common.WipeByteArray(s.key)
	s.key = nil
	s.salt = nil
	s.log.Info(ctx, "vault key released")
	return nil
}

// SaveVault encrypts vault with a fresh nonce and replaces the stored
// document. It fails if the stored salt no longer matches the one the key
// was derived from.
func (s *vaultService) SaveVault(ctx context.Context, vault *models.VaultData) error {
	if vault == nil {
		return errors.New("nil vault")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return ErrVaultLocked
	}

	ciphertext, nonce, err := cryptox.Seal(vault, s.key)
	if err != nil {
		return fmt.Errorf("vault encryption error: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		salt, err := repo.Get(ctx, metadata.KeySalt)
		if err != nil {
			return err
		}
		if !bytes.Equal(salt, s.salt) {
			return fmt.Errorf("%w: salt mismatch", common.ErrInternal)
		}
		if err := repo.Set(ctx, metadata.KeyVault, ciphertext); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyVaultNonce, nonce)
	})
	if err != nil {
		return fmt.Errorf("vault save error: %w", err)
	}
	return nil
}

// LoadVault re-reads the stored vault with the held key. It returns nil,
// nil when no document is stored.
func (s *vaultService) LoadVault(ctx context.Context) (*models.VaultData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return nil, ErrVaultLocked
	}
	return s.read(ctx, s.repo(s.db), s.key)
}

func (s *vaultService) read(ctx context.Context, repo metadata.Repository, key []byte) (*models.VaultData, error) {
	ciphertext, err := repo.Get(ctx, metadata.KeyVault)
	if err != nil {
		return nil, fmt.Errorf("vault read error: %w", err)
	}
	if ciphertext == nil {
		return nil, nil
	}
	nonce, err := repo.Get(ctx, metadata.KeyVaultNonce)
	if err != nil {
		return nil, fmt.Errorf("vault read error: %w", err)
	}

	var vault models.VaultData
	if err := cryptox.Open(ciphertext, nonce, key, &vault); err != nil {
		return nil, fmt.Errorf("vault decrypt error: %w", err)
	}
	if vault.Entries == nil {
		vault.Entries = []models.VaultEntry{}
	}
	return &vault, nil
}

func (s *vaultService) hold(key, salt []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.key)
	s.key = key
	s.salt = bytes.Clone(salt)
}
