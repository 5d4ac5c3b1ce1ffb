// Package ledger talks to Ledger hardware wallets over USB HID and implements
// the subset of the Ethereum app protocol the provider bridge relies on.
package ledger

// Admin enumerates and connects to attached Ledger devices.
type Admin interface {
	Supported() bool
	CountDevices() int
	Connect(deviceIndex int) (Device, error)
}

// Device exchanges raw APDU commands with a connected Ledger.
// Exchange returns the response payload including the trailing status word.
type Device interface {
	Exchange(command []byte) ([]byte, error)
	Close() error
}
