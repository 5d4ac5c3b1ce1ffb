package device

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/pkg/errors"
)

// DefaultPath is the first account of the standard Ethereum derivation scheme.
const DefaultPath = "m/44'/60'/0'/0/0"

// ParsePath parses a BIP-32 derivation path such as m/44'/60'/0'/0/0.
func ParsePath(path string) (accounts.DerivationPath, error) {
	if path == "" {
		path = DefaultPath
	}

	parsed, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid derivation path %q", path)
	}

	return parsed, nil
}
