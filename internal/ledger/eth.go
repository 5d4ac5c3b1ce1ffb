package ledger

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-provider/internal/wallet"
)

// ethOpcode is an instruction of the Ledger Ethereum app.
type ethOpcode byte

const (
	ethCLA byte = 0xe0

	ethOpRetrieveAddress     ethOpcode = 0x02 // public key and address for a BIP 32 path
	ethOpSignTransaction     ethOpcode = 0x04 // sign a serialized unsigned transaction
	ethOpGetConfiguration    ethOpcode = 0x06 // app flags and version
	ethOpSignPersonalMessage ethOpcode = 0x08 // sign an EIP-191 personal message
	ethOpProvideERC20        ethOpcode = 0x0a // signed ERC-20 token descriptor
	ethOpProvideExtPlugin    ethOpcode = 0x12 // external plugin descriptor and signature
	ethOpProvideNFT          ethOpcode = 0x14 // signed NFT collection descriptor
	ethOpSetPlugin           ethOpcode = 0x16 // select plugin for the next transaction

	p1FirstChunk byte = 0x00
	p1NextChunk  byte = 0x80

	maxChunk      = 255
	maxPathLength = 10
	signatureLen  = 65

	// ledgerEip155Size is the largest EIP-155 tail (chainId, 0, 0) the app fails to
	// parse when it arrives alone in the last transaction chunk.
	ledgerEip155Size = 3
)

// EthApp speaks the Ledger Ethereum app protocol over a Device.
// Calls are not synchronized, the caller owns exclusive access.
type EthApp struct {
	device Device
}

// NewEthApp wraps a connected device.
func NewEthApp(device Device) *EthApp {
	return &EthApp{device: device}
}

// exchange sends one APDU and strips the status word, mapping failures to *StatusError.
func (app *EthApp) exchange(opcode ethOpcode, p1, p2 byte, data []byte) ([]byte, error) {
	if len(data) > maxChunk {
		return nil, errors.Errorf("APDU data too long: %d bytes", len(data))
	}

	apdu := make([]byte, 0, 5+len(data))
	apdu = append(apdu, ethCLA, byte(opcode), p1, p2, byte(len(data)))
	apdu = append(apdu, data...)

	reply, err := app.device.Exchange(apdu)
	if err != nil {
		return nil, err
	}
	if len(reply) < 2 {
		return nil, errors.Errorf("reply too short: %d bytes", len(reply))
	}

	sw := binary.BigEndian.Uint16(reply[len(reply)-2:])
	if sw != SWOk {
		return nil, &StatusError{SW: sw}
	}

	return reply[:len(reply)-2], nil
}

// serializePath flattens a derivation path into count ++ big-endian components.
func serializePath(path accounts.DerivationPath) ([]byte, error) {
	if len(path) == 0 || len(path) > maxPathLength {
		return nil, errors.Errorf("derivation path must have 1 to %d components", maxPathLength)
	}

	out := make([]byte, 1+4*len(path))
	out[0] = byte(len(path))
	for i, component := range path {
		binary.BigEndian.PutUint32(out[1+4*i:], component)
	}
	return out, nil
}

// Version returns the major, minor and patch version of the running Ethereum app.
func (app *EthApp) Version() ([3]byte, error) {
	reply, err := app.exchange(ethOpGetConfiguration, 0, 0, nil)
	if err != nil {
		return [3]byte{}, err
	}
	if len(reply) != 4 {
		return [3]byte{}, errors.New("invalid version reply")
	}

	var version [3]byte
	copy(version[:], reply[1:])
	return version, nil
}

// GetAddress returns the address for path without asking the user to confirm.
//
// The reply is laid out as:
//
//	public key length | 1 byte
//	public key        | arbitrary
//	address length    | 1 byte
//	address           | hex ascii
func (app *EthApp) GetAddress(path accounts.DerivationPath) (common.Address, error) {
	data, err := serializePath(path)
	if err != nil {
		return common.Address{}, err
	}

	reply, err := app.exchange(ethOpRetrieveAddress, 0x00, 0x00, data)
	if err != nil {
		return common.Address{}, err
	}

	if len(reply) < 1 || len(reply) < 1+int(reply[0]) {
		return common.Address{}, errors.New("reply lacks public key entry")
	}
	reply = reply[1+int(reply[0]):]

	if len(reply) < 1 || len(reply) < 1+int(reply[0]) {
		return common.Address{}, errors.New("reply lacks address entry")
	}

	var address common.Address
	if _, err := hex.Decode(address[:], reply[1:1+int(reply[0])]); err != nil {
		return common.Address{}, errors.Wrap(err, "invalid address in reply")
	}
	return address, nil
}

// SignTransaction sends the resolution descriptors followed by the serialized
// unsigned transaction and waits for the user to approve.
func (app *EthApp) SignTransaction(path accounts.DerivationPath, rawTxHex string, resolution wallet.Resolution) (wallet.Signature, error) {
	rawTx, err := hex.DecodeString(rawTxHex)
	if err != nil {
		return wallet.Signature{}, errors.Wrap(err, "invalid raw transaction hex")
	}

	if err := app.provideResolution(resolution.Normalized()); err != nil {
		return wallet.Signature{}, err
	}

	pathBytes, err := serializePath(path)
	if err != nil {
		return wallet.Signature{}, err
	}

	log.Info().Msg("Confirm the transaction on your Ledger")
	reply, err := app.streamChunks(ethOpSignTransaction, append(pathBytes, rawTx...))
	if err != nil {
		return wallet.Signature{}, err
	}
	return parseSignature(reply)
}

// SignPersonalMessage signs message with the EIP-191 personal prefix applied by the device.
func (app *EthApp) SignPersonalMessage(path accounts.DerivationPath, message []byte) (wallet.Signature, error) {
	pathBytes, err := serializePath(path)
	if err != nil {
		return wallet.Signature{}, err
	}

	payload := make([]byte, 0, len(pathBytes)+4+len(message))
	payload = append(payload, pathBytes...)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(message)))
	payload = append(payload, message...)

	log.Info().Msg("Confirm the message signature on your Ledger")
	reply, err := app.streamChunks(ethOpSignPersonalMessage, payload)
	if err != nil {
		return wallet.Signature{}, err
	}
	return parseSignature(reply)
}

func (app *EthApp) Close() error {
	return app.device.Close()
}

// streamChunks sends payload in blocks of at most 255 bytes and returns the reply
// to the last one.
func (app *EthApp) streamChunks(opcode ethOpcode, payload []byte) ([]byte, error) {
	var (
		reply []byte
		err   error
		p1    = p1FirstChunk
	)
	size := chunkSize(opcode, len(payload))
	for len(payload) > 0 {
		chunk := min(size, len(payload))
		reply, err = app.exchange(opcode, p1, 0x00, payload[:chunk])
		if err != nil {
			return nil, err
		}
		payload = payload[chunk:]
		p1 = p1NextChunk
	}
	return reply, nil
}

// chunkSize picks the block size for a payload of n bytes. A transaction spanning
// several chunks never ends on one of 1 to ledgerEip155Size bytes
// (LedgerHQ/app-ethereum#409).
func chunkSize(opcode ethOpcode, n int) int {
	chunk := maxChunk
	if opcode != ethOpSignTransaction || n <= maxChunk {
		return chunk
	}
	for chunk > ledgerEip155Size+1 {
		if rest := n % chunk; rest == 0 || rest > ledgerEip155Size {
			break
		}
		chunk--
	}
	return chunk
}

// parseSignature decodes the v ++ r ++ s reply of the signing instructions.
func parseSignature(reply []byte) (wallet.Signature, error) {
	if len(reply) != signatureLen {
		return wallet.Signature{}, errors.New("reply lacks signature")
	}
	return wallet.NewSignature(reply[1:33], reply[33:65], uint64(reply[0])), nil
}

func (app *EthApp) provideResolution(resolution wallet.Resolution) error {
	for _, plugin := range resolution.ExternalPlugin {
		data := append(append([]byte{}, plugin.Payload...), plugin.Signature...)
		if _, err := app.exchange(ethOpProvideExtPlugin, 0x00, 0x00, data); err != nil {
			return errors.Wrap(err, "failed to provide external plugin")
		}
	}
	for _, plugin := range resolution.Plugin {
		if _, err := app.exchange(ethOpSetPlugin, 0x00, 0x00, plugin); err != nil {
			return errors.Wrap(err, "failed to set plugin")
		}
	}
	for _, nft := range resolution.NFTs {
		if _, err := app.exchange(ethOpProvideNFT, 0x00, 0x00, nft); err != nil {
			return errors.Wrap(err, "failed to provide NFT information")
		}
	}
	for _, token := range resolution.ERC20Tokens {
		if _, err := app.exchange(ethOpProvideERC20, 0x00, 0x00, token); err != nil {
			return errors.Wrap(err, "failed to provide ERC-20 information")
		}
	}
	if len(resolution.Domains) > 0 {
		log.Debug().Int("domains", len(resolution.Domains)).Msg("Domain descriptors are not forwarded to the device")
	}
	return nil
}
