// Package cryptox holds the vault's key derivation and authenticated
// encryption primitives.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/keynest/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the length of a derived master key (AES-256).
	KeySize = 32
	// SaltSize is the length of a fresh KDF salt.
	SaltSize = 32
	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12
)

// ErrDecrypt means the ciphertext failed authentication under the key.
var ErrDecrypt = errors.New("decryption failed")

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// DeriveMasterKey stretches password with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a value that can be stored to check a master key
// without storing the key itself.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// CheckVerifier reports, in constant time, whether masterKey matches
// verifier.
func CheckVerifier(masterKey, verifier []byte) bool {
	return subtle.ConstantTimeCompare(MakeVerifier(masterKey), verifier) == 1
}

// Seal marshals v to JSON and encrypts it with AES-GCM under key using a
// fresh random nonce.
func Seal(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(plaintext)

	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = common.GenerateRandByteArray(NonceSize)
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open decrypts ciphertext produced by Seal and unmarshals it into v.
// Authentication failures are reported as ErrDecrypt.
func Open(ciphertext, nonce, key []byte, v any) error {
	aead, err := newGCM(key)
	if err != nil {
		return err
	}
	if len(nonce) != aead.NonceSize() {
		return ErrDecrypt
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrDecrypt
	}
	defer common.WipeByteArray(plaintext)

	return json.Unmarshal(plaintext, v)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
