package keystore

import (
	gethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const keystoreVersion = 3

// encryptMnemonic seals a mnemonic in an Ethereum keystore v3 container
// (scrypt, AES-128-CTR, Keccak-256 MAC).
func encryptMnemonic(mnemonic string, password string, params *ScryptParams) (*KeystoreJSON, error) {
	cryptoJSON, err := gethkeystore.EncryptDataV3([]byte(mnemonic), []byte(password), params.N, params.P)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt mnemonic")
	}

	return &KeystoreJSON{
		Version: keystoreVersion,
		ID:      uuid.New().String(),
		Crypto:  cryptoJSON,
	}, nil
}
