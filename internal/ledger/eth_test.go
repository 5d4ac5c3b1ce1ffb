package ledger

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/wallet"
)

type scriptedDevice struct {
	commands [][]byte
	replies  [][]byte
	closed   bool
}

func (d *scriptedDevice) Exchange(command []byte) ([]byte, error) {
	d.commands = append(d.commands, append([]byte{}, command...))
	if len(d.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	reply := d.replies[0]
	d.replies = d.replies[1:]
	return reply, nil
}

func (d *scriptedDevice) Close() error {
	d.closed = true
	return nil
}

func ok(data ...byte) []byte {
	return append(data, 0x90, 0x00)
}

var testPath = accounts.DefaultBaseDerivationPath

func TestGetAddress(t *testing.T) {
	address := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	asciiAddress := []byte(hex.EncodeToString(address.Bytes()))

	reply := []byte{65}
	reply = append(reply, bytes.Repeat([]byte{0x04}, 65)...)
	reply = append(reply, byte(len(asciiAddress)))
	reply = append(reply, asciiAddress...)

	device := &scriptedDevice{replies: [][]byte{ok(reply...)}}
	app := NewEthApp(device)

	got, err := app.GetAddress(testPath)
	require.NoError(t, err)
	assert.Equal(t, address, got)

	require.Len(t, device.commands, 1)
	command := device.commands[0]
	assert.Equal(t, []byte{0xe0, 0x02, 0x00, 0x00, 21, 5}, command[:6])
	assert.Equal(t, []byte{0x80, 0x00, 0x00, 0x2c}, command[6:10])
}

func TestGetAddressWrongApp(t *testing.T) {
	device := &scriptedDevice{replies: [][]byte{{0x6e, 0x00}}}
	app := NewEthApp(device)

	_, err := app.GetAddress(testPath)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.WrongApp())
	assert.ErrorIs(t, err, wallet.ErrSessionOpenFailed)
}

func TestSignTransactionChunksPayload(t *testing.T) {
	rawTx := bytes.Repeat([]byte{0xcc}, 600)
	r := bytes.Repeat([]byte{0x11}, 32)
	s := bytes.Repeat([]byte{0x22}, 32)
	sigReply := append(append([]byte{0x01}, r...), s...)

	device := &scriptedDevice{replies: [][]byte{ok(), ok(), ok(sigReply...)}}
	app := NewEthApp(device)

	sig, err := app.SignTransaction(testPath, hex.EncodeToString(rawTx), wallet.NewResolution())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sig.V)
	assert.Equal(t, r, sig.R[:])
	assert.Equal(t, s, sig.S[:])

	// 21 path bytes + 600 tx bytes split into 255 + 255 + 111
	require.Len(t, device.commands, 3)
	assert.Equal(t, []byte{0xe0, 0x04, 0x00, 0x00, 0xff}, device.commands[0][:5])
	assert.Equal(t, []byte{0xe0, 0x04, 0x80, 0x00, 0xff}, device.commands[1][:5])
	assert.Equal(t, []byte{0xe0, 0x04, 0x80, 0x00, 111}, device.commands[2][:5])
}

func TestSignTransactionAvoidsShortLastChunk(t *testing.T) {
	// 21 path bytes + 490 tx bytes would leave a single byte after two full chunks
	rawTx := bytes.Repeat([]byte{0xcc}, 490)
	sigReply := make([]byte, 65)
	device := &scriptedDevice{replies: [][]byte{ok(), ok(), ok(sigReply...)}}
	app := NewEthApp(device)

	_, err := app.SignTransaction(testPath, hex.EncodeToString(rawTx), wallet.NewResolution())
	require.NoError(t, err)

	require.Len(t, device.commands, 3)
	total := 0
	for _, command := range device.commands {
		size := int(command[4])
		require.Len(t, command, 5+size)
		assert.Greater(t, size, ledgerEip155Size)
		total += size
	}
	assert.Equal(t, 511, total)
	assert.Equal(t, byte(5), device.commands[2][4])
}

func TestChunkSize(t *testing.T) {
	for n := maxChunk + 1; n < 2000; n++ {
		chunk := chunkSize(ethOpSignTransaction, n)
		require.LessOrEqual(t, chunk, maxChunk)
		if rest := n % chunk; rest != 0 {
			assert.Greater(t, rest, ledgerEip155Size, "payload of %d bytes", n)
		}
	}

	// other instructions keep full blocks
	assert.Equal(t, maxChunk, chunkSize(ethOpSignPersonalMessage, 511))
	// payloads that fit one chunk are left alone
	assert.Equal(t, maxChunk, chunkSize(ethOpSignTransaction, 3))
	assert.Equal(t, maxChunk, chunkSize(ethOpSignTransaction, maxChunk))
}

func TestSignTransactionSendsResolutionFirst(t *testing.T) {
	sigReply := make([]byte, 65)
	device := &scriptedDevice{replies: [][]byte{ok(), ok(), ok(sigReply...)}}
	app := NewEthApp(device)

	resolution := wallet.Resolution{ERC20Tokens: []wallet.HexDescriptor{{0x01, 0x02}}}
	_, err := app.SignTransaction(testPath, "e3", resolution)
	require.NoError(t, err)

	require.Len(t, device.commands, 2)
	assert.Equal(t, byte(ethOpProvideERC20), device.commands[0][1])
	assert.Equal(t, byte(ethOpSignTransaction), device.commands[1][1])
}

func TestSignTransactionLogsUnforwardedDomains(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	sigReply := make([]byte, 65)
	device := &scriptedDevice{replies: [][]byte{ok(sigReply...)}}
	app := NewEthApp(device)

	resolution := wallet.NewResolution()
	resolution.Domains = []wallet.DomainResolved{{Domain: "vitalik.eth"}}
	_, err := app.SignTransaction(testPath, "e3", resolution)
	require.NoError(t, err)

	// only the signing instruction reaches the device
	require.Len(t, device.commands, 1)
	assert.Equal(t, byte(ethOpSignTransaction), device.commands[0][1])
	assert.Contains(t, buf.String(), `"domains":1`)
	assert.Contains(t, buf.String(), "not forwarded")
}

func TestSignTransactionUserRejected(t *testing.T) {
	device := &scriptedDevice{replies: [][]byte{{0x69, 0x85}}}
	app := NewEthApp(device)

	_, err := app.SignTransaction(testPath, "e3", wallet.NewResolution())
	require.ErrorIs(t, err, wallet.ErrUserRejectedOnDevice)
}

func TestSignTransactionInvalidHex(t *testing.T) {
	app := NewEthApp(&scriptedDevice{})

	_, err := app.SignTransaction(testPath, "0xzz", wallet.NewResolution())
	require.Error(t, err)
}

func TestSignPersonalMessageLayout(t *testing.T) {
	sigReply := append([]byte{27}, make([]byte, 64)...)
	device := &scriptedDevice{replies: [][]byte{ok(sigReply...)}}
	app := NewEthApp(device)

	sig, err := app.SignPersonalMessage(testPath, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(27), sig.V)

	require.Len(t, device.commands, 1)
	data := device.commands[0][5:]
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x05}, data[21:25])
	assert.Equal(t, []byte("hello"), data[25:])
}

func TestVersion(t *testing.T) {
	device := &scriptedDevice{replies: [][]byte{ok(0x01, 1, 10, 3)}}
	app := NewEthApp(device)

	version, err := app.Version()
	require.NoError(t, err)
	assert.Equal(t, [3]byte{1, 10, 3}, version)
}

func TestSerializePathBounds(t *testing.T) {
	_, err := serializePath(accounts.DerivationPath{})
	require.Error(t, err)

	_, err = serializePath(make(accounts.DerivationPath, 11))
	require.Error(t, err)
}

func TestCloseClosesDevice(t *testing.T) {
	device := &scriptedDevice{}
	require.NoError(t, NewEthApp(device).Close())
	assert.True(t, device.closed)
}
