// Package metadata stores the vault's key/value records: KDF salt, key
// verifier and the encrypted vault document.
package metadata

import "context"

// Key names a metadata record.
type Key string

const (
	KeySalt       Key = "salt"
	KeyVerifier   Key = "verifier"
	KeyVault      Key = "vault"
	KeyVaultNonce Key = "vault_nonce"
)

type Repository interface {
	// Get returns nil, nil when key is absent.
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	Has(ctx context.Context, key Key) (bool, error)
}
