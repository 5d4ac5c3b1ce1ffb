package device

import (
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"github/chapool/ledger-provider/internal/wallet"
)

// Emulator is a software device deriving keys from a BIP-39 mnemonic.
// Its signatures are shaped like the Ledger Ethereum app's: v is chain-encoded
// (truncated to a byte) for legacy transactions, the y-parity for typed
// transactions and 27/28 for personal messages.
type Emulator struct {
	mu     sync.Mutex
	master *bip32.Key
}

// NewEmulator creates an emulator from a mnemonic and optional passphrase.
func NewEmulator(mnemonic string, passphrase string) (*Emulator, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, passphrase)
	defer clear(seed)

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	return &Emulator{master: master}, nil
}

// deriveKey walks path from the master key. The caller must not retain the key.
func (e *Emulator) deriveKey(path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.master
	for _, index := range path {
		child, err := key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
		key = child
	}

	privateKey, err := crypto.ToECDSA(common.LeftPadBytes(key.Key, 32))
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert to ECDSA private key")
	}
	return privateKey, nil
}

func (e *Emulator) GetAddress(path accounts.DerivationPath) (common.Address, error) {
	privateKey, err := e.deriveKey(path)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey), nil
}

// SignTransaction signs keccak256(payload), which is the signing hash for both
// EIP-155 legacy payloads and EIP-2718 typed payloads.
func (e *Emulator) SignTransaction(path accounts.DerivationPath, rawTxHex string, _ wallet.Resolution) (wallet.Signature, error) {
	payload, err := hex.DecodeString(rawTxHex)
	if err != nil {
		return wallet.Signature{}, errors.Wrap(err, "invalid raw transaction hex")
	}
	if len(payload) == 0 {
		return wallet.Signature{}, errors.New("empty transaction payload")
	}

	sig, err := e.sign(path, crypto.Keccak256(payload))
	if err != nil {
		return wallet.Signature{}, err
	}

	// typed transactions start with the type byte, legacy ones with an RLP list header
	if payload[0] >= 0xc0 {
		chainID, err := legacyChainID(payload)
		if err != nil {
			return wallet.Signature{}, err
		}
		v := new(big.Int).Mul(chainID, big.NewInt(2))
		v.Add(v, big.NewInt(35+int64(sig.V)))
		sig.V = uint64(byte(v.Uint64()))
	}

	return sig, nil
}

func (e *Emulator) SignPersonalMessage(path accounts.DerivationPath, message []byte) (wallet.Signature, error) {
	sig, err := e.sign(path, accounts.TextHash(message))
	if err != nil {
		return wallet.Signature{}, err
	}
	sig.V += 27
	return sig, nil
}

func (e *Emulator) Close() error {
	return nil
}

func (e *Emulator) sign(path accounts.DerivationPath, hash []byte) (wallet.Signature, error) {
	privateKey, err := e.deriveKey(path)
	if err != nil {
		return wallet.Signature{}, err
	}

	raw, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return wallet.Signature{}, errors.Wrap(err, "failed to sign")
	}
	return wallet.NewSignature(raw[:32], raw[32:64], uint64(raw[64])), nil
}

// legacyChainID extracts the EIP-155 chain id from an unsigned legacy payload
// [nonce, gasPrice, gas, to, value, data, chainId, 0, 0].
func legacyChainID(payload []byte) (*big.Int, error) {
	var fields []rlp.RawValue
	if err := rlp.DecodeBytes(payload, &fields); err != nil {
		return nil, errors.Wrap(err, "invalid legacy transaction payload")
	}
	const eip155Fields = 9
	if len(fields) != eip155Fields {
		return nil, errors.New("legacy payload without EIP-155 chain id")
	}

	chainID := new(big.Int)
	if err := rlp.DecodeBytes(fields[6], chainID); err != nil {
		return nil, errors.Wrap(err, "invalid chain id")
	}
	return chainID, nil
}

// EmulatorConnector hands out the same Emulator for every connection.
type EmulatorConnector struct {
	emulator *Emulator
}

// NewEmulatorConnector wraps e as a Connector.
func NewEmulatorConnector(e *Emulator) *EmulatorConnector {
	return &EmulatorConnector{emulator: e}
}

func (c *EmulatorConnector) Supported() bool {
	return true
}

func (c *EmulatorConnector) Connect() (Transport, error) {
	return c.emulator, nil
}
