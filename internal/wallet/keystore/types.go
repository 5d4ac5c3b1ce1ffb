package keystore

import (
	"context"

	gethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
)

// Service stores the emulator mnemonic encrypted on disk
type Service interface {
	// CreateKeystore encrypts mnemonic with password and writes the keystore file.
	// address is the account recorded for password verification.
	CreateKeystore(ctx context.Context, mnemonic string, password string, address string) (*KeystoreJSON, error)

	// DecryptMnemonic reads the keystore file and decrypts the mnemonic
	DecryptMnemonic(ctx context.Context, password string) (string, *KeystoreJSON, error)

	// Exists checks if the keystore file exists
	Exists(ctx context.Context) (bool, error)

	// Path returns the keystore file location
	Path() string
}

// KeystoreJSON represents the Ethereum keystore v3 JSON structure
//
//nolint:revive // KeystoreJSON is the standard name for Ethereum keystore JSON structure
type KeystoreJSON struct {
	Version int                     `json:"version"`
	ID      string                  `json:"id"`
	Address string                  `json:"address,omitempty"`
	Crypto  gethkeystore.CryptoJSON `json:"crypto"`
}

// ScryptParams defines the scrypt cost of new keystores. The derived key length
// and block size are fixed by the v3 format.
type ScryptParams struct {
	N int // CPU/memory cost parameter
	P int // Parallelization parameter
}

// DefaultScryptParams returns the standard scrypt cost of go-ethereum keystores
func DefaultScryptParams() *ScryptParams {
	return &ScryptParams{
		N: gethkeystore.StandardScryptN,
		P: gethkeystore.StandardScryptP,
	}
}

// LightScryptParams trades security for speed, for tests and throwaway keys.
func LightScryptParams() *ScryptParams {
	return &ScryptParams{
		N: gethkeystore.LightScryptN,
		P: gethkeystore.LightScryptP,
	}
}
