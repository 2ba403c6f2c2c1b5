package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/keynest/internal/client/models"
	"github.com/dmitrijs2005/keynest/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/keynest/internal/client/storage"
	"github.com/dmitrijs2005/keynest/internal/common"
	"github.com/dmitrijs2005/keynest/internal/logging"
)

const master = "correct horse battery"

func setup(t *testing.T) (*sql.DB, VaultService) {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, NewVaultService(db, logging.Discard())
}

func meta(t *testing.T, db *sql.DB, k metadata.Key) []byte {
	t.Helper()
	v, err := metadata.NewSQLiteRepository(db).Get(context.Background(), k)
	require.NoError(t, err)
	return v
}

func TestVaultExists(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	ok, err := svc.VaultExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.InitVault(ctx, []byte(master)))

	ok, err = svc.VaultExists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInitVault_WritesEncryptedEmptyVault(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.InitVault(ctx, []byte(master)))

	assert.Len(t, meta(t, db, metadata.KeySalt), 32)
	assert.Len(t, meta(t, db, metadata.KeyVerifier), 32)
	assert.Len(t, meta(t, db, metadata.KeyVaultNonce), 12)
	assert.NotContains(t, string(meta(t, db, metadata.KeyVault)), "entries")

	// Left unlocked.
	v, err := svc.LoadVault(ctx)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, models.VaultVersion, v.Version)
	assert.Empty(t, v.Entries)
}

func TestInitVault_Errors(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.InitVault(ctx, []byte("short")), ErrWeakMasterPassword)

	require.NoError(t, svc.InitVault(ctx, []byte(master)))
	require.ErrorIs(t, svc.InitVault(ctx, []byte(master)), ErrVaultExists)
}

func TestRoundTrip(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.InitVault(ctx, []byte(master)))

	v := models.NewVaultData()
	v.Upsert(models.VaultEntry{ID: "1", Title: "GitHub", Password: "hunter2", TOTPSecret: "JBSWY3DPEHPK3PXP", UpdatedAt: 10})
	require.NoError(t, svc.SaveVault(ctx, v))
	require.NoError(t, svc.LockVault(ctx))

	got, err := svc.UnlockVault(ctx, []byte(master))
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestUnlockVault_WrongPassword(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.InitVault(ctx, []byte(master)))
	require.NoError(t, svc.LockVault(ctx))

	_, err := svc.UnlockVault(ctx, []byte("wrong password"))
	require.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.LoadVault(ctx)
	require.ErrorIs(t, err, ErrVaultLocked)
}

func TestUnlockVault_NoVault(t *testing.T) {
	_, svc := setup(t)
	_, err := svc.UnlockVault(context.Background(), []byte(master))
	require.ErrorIs(t, err, ErrVaultNotFound)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUnlockVault_MissingSalt(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.InitVault(ctx, []byte(master)))
	require.NoError(t, svc.LockVault(ctx))
	require.NoError(t, metadata.NewSQLiteRepository(db).Delete(ctx, metadata.KeySalt))

	_, err := svc.UnlockVault(ctx, []byte(master))
	require.ErrorIs(t, err, common.ErrInternal)
}

func TestLocked_SaveAndLoadRefused(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.InitVault(ctx, []byte(master)))
	require.NoError(t, svc.LockVault(ctx))
	require.NoError(t, svc.LockVault(ctx))

	require.ErrorIs(t, svc.SaveVault(ctx, models.NewVaultData()), ErrVaultLocked)
	_, err := svc.LoadVault(ctx)
	require.ErrorIs(t, err, ErrVaultLocked)
}

func TestSaveVault_FreshNonceEachTime(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.InitVault(ctx, []byte(master)))

	n1 := meta(t, db, metadata.KeyVaultNonce)
	require.NoError(t, svc.SaveVault(ctx, models.NewVaultData()))
	n2 := meta(t, db, metadata.KeyVaultNonce)
	assert.NotEqual(t, n1, n2)
}

func TestSaveVault_SaltMismatch(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.InitVault(ctx, []byte(master)))
	require.NoError(t, metadata.NewSQLiteRepository(db).Set(ctx, metadata.KeySalt, []byte("replaced")))

	err := svc.SaveVault(ctx, models.NewVaultData())
	require.ErrorIs(t, err, common.ErrInternal)
}

func TestSaveVault_Nil(t *testing.T) {
	_, svc := setup(t)
	require.Error(t, svc.SaveVault(context.Background(), nil))
}

func TestLoadVault_NoDocument(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.InitVault(ctx, []byte(master)))
	require.NoError(t, metadata.NewSQLiteRepository(db).Delete(ctx, metadata.KeyVault))

	v, err := svc.LoadVault(ctx)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestVaultExists_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("disk I/O error"))

	svc := NewVaultService(db, logging.Discard())
	_, err = svc.VaultExists(context.Background())
	require.ErrorContains(t, err, "vault lookup error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInitVault_WriteErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO metadata").WillReturnError(errors.New("readonly database"))
	mock.ExpectRollback()

	svc := NewVaultService(db, logging.Discard())
	err = svc.InitVault(context.Background(), []byte(master))
	require.ErrorContains(t, err, "vault init error")
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = svc.LoadVault(context.Background())
	require.ErrorIs(t, err, ErrVaultLocked)
}
