package keystore

import (
	gethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/pkg/errors"
)

// ErrInvalidPassword is returned when the keystore MAC does not verify.
var ErrInvalidPassword = errors.New("invalid keystore password")

// decryptMnemonic opens a mnemonic sealed by encryptMnemonic
func decryptMnemonic(keystoreJSON *KeystoreJSON, password string) (string, error) {
	if keystoreJSON.Version != keystoreVersion {
		return "", errors.Errorf("unsupported keystore version %d", keystoreJSON.Version)
	}

	plaintext, err := gethkeystore.DecryptDataV3(keystoreJSON.Crypto, password)
	if errors.Is(err, gethkeystore.ErrDecrypt) {
		return "", ErrInvalidPassword
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt keystore")
	}
	defer clear(plaintext)

	return string(plaintext), nil
}
