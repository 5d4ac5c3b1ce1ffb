package test

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-provider/internal/wallet"
	"github/chapool/ledger-provider/internal/wallet/device"
)

// Mnemonic is the well known development mnemonic; its first account is TestAddress.
//
//nolint:gosec // not a secret
const Mnemonic = "test test test test test test test test test test test junk"

// TestAddress is the account at m/44'/60'/0'/0/0 for Mnemonic.
var TestAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// DeviceCall is one recorded invocation of the device.
type DeviceCall struct {
	Op      string
	Start   time.Time
	End     time.Time
	Payload string
	// Resolution is the context passed with a transaction signing request.
	Resolution *wallet.Resolution
}

// RecordingDevice is a mock transport signing with the emulator while recording
// every call with its start and end time.
type RecordingDevice struct {
	emulator *device.Emulator

	mu       sync.Mutex
	calls    []DeviceCall
	active   int
	overlaps int

	// Delay is slept inside every signing call to widen race windows.
	Delay time.Duration
	// Reject makes signing calls fail as if the user declined on the device.
	Reject bool
	// Release, when set, blocks every signing call until it is closed.
	Release chan struct{}
	// Closed counts calls to Close.
	Closed int
}

// NewRecordingDevice creates a recording device for Mnemonic.
func NewRecordingDevice(t *testing.T) *RecordingDevice {
	t.Helper()

	emulator, err := device.NewEmulator(Mnemonic, "")
	require.NoError(t, err)

	return &RecordingDevice{emulator: emulator}
}

// Calls returns a snapshot of the recorded calls in start order.
func (d *RecordingDevice) Calls() []DeviceCall {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]DeviceCall(nil), d.calls...)
}

// CallCount returns the number of recorded calls for op, or all calls if op is empty.
func (d *RecordingDevice) CallCount(op string) int {
	count := 0
	for _, call := range d.Calls() {
		if op == "" || call.Op == op {
			count++
		}
	}
	return count
}

// Overlaps returns how many calls started while another one was still running.
func (d *RecordingDevice) Overlaps() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.overlaps
}

func (d *RecordingDevice) begin(op string, payload string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active > 0 {
		d.overlaps++
	}
	d.active++
	d.calls = append(d.calls, DeviceCall{Op: op, Start: time.Now(), Payload: payload})
	return len(d.calls) - 1
}

func (d *RecordingDevice) end(idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.active--
	d.calls[idx].End = time.Now()
}

func (d *RecordingDevice) wait() error {
	if d.Release != nil {
		<-d.Release
	}
	if d.Delay > 0 {
		time.Sleep(d.Delay)
	}
	if d.Reject {
		return wallet.ErrUserRejectedOnDevice
	}
	return nil
}

func (d *RecordingDevice) GetAddress(path accounts.DerivationPath) (common.Address, error) {
	idx := d.begin("get_address", path.String())
	defer d.end(idx)

	return d.emulator.GetAddress(path)
}

func (d *RecordingDevice) SignTransaction(path accounts.DerivationPath, rawTxHex string, resolution wallet.Resolution) (wallet.Signature, error) {
	idx := d.begin(device.OpSignTransaction, rawTxHex)
	defer d.end(idx)

	d.mu.Lock()
	d.calls[idx].Resolution = &resolution
	d.mu.Unlock()

	if err := d.wait(); err != nil {
		return wallet.Signature{}, err
	}
	return d.emulator.SignTransaction(path, rawTxHex, resolution)
}

func (d *RecordingDevice) SignPersonalMessage(path accounts.DerivationPath, message []byte) (wallet.Signature, error) {
	idx := d.begin(device.OpSignPersonalMessage, string(message))
	defer d.end(idx)

	if err := d.wait(); err != nil {
		return wallet.Signature{}, err
	}
	return d.emulator.SignPersonalMessage(path, message)
}

func (d *RecordingDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Closed++
	return nil
}

// Connector exposes a RecordingDevice through device.Connector.
type Connector struct {
	Device *RecordingDevice
	// Unsupported simulates a platform without the device access API.
	Unsupported bool
	// Err is returned from Connect when set.
	Err error

	mu       sync.Mutex
	connects int
}

func (c *Connector) Supported() bool {
	return !c.Unsupported
}

func (c *Connector) Connect() (device.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connects++
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Device == nil {
		return nil, errors.New("no device attached")
	}
	return c.Device, nil
}

// Connects returns how many times Connect was called.
func (c *Connector) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connects
}

// NewDeviceManager returns a device manager at the default path backed by a fresh RecordingDevice.
func NewDeviceManager(t *testing.T) (*device.Manager, *RecordingDevice) {
	t.Helper()

	dev := NewRecordingDevice(t)
	path, err := device.ParsePath(device.DefaultPath)
	require.NoError(t, err)

	return device.NewManager(&Connector{Device: dev}, path), dev
}
