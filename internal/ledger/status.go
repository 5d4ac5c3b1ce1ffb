package ledger

import (
	"fmt"

	"github/chapool/ledger-provider/internal/wallet"
)

// Status words returned by the Ledger firmware and the Ethereum app.
const (
	SWOk                   uint16 = 0x9000
	SWConditionsNotMet     uint16 = 0x6985 // user denied the request
	SWSecurityNotSatisfied uint16 = 0x6982
	SWInvalidData          uint16 = 0x6a80
	SWAppNotOpen           uint16 = 0x6511
	SWInsNotSupported      uint16 = 0x6d00
	SWClaNotSupported      uint16 = 0x6e00
	SWClaNotSupportedAlt   uint16 = 0x6e01
	SWLocked               uint16 = 0x5515
	SWLockedAlt            uint16 = 0x6b0c
)

// StatusError is a non-success status word returned by the device.
type StatusError struct {
	SW uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger returned status 0x%04x (%s)", e.SW, e.describe())
}

func (e *StatusError) describe() string {
	switch {
	case e.UserRejected():
		return "denied by the user"
	case e.WrongApp():
		return "Ethereum app is not open"
	case e.Locked():
		return "device is locked"
	case e.SW == SWInvalidData:
		return "invalid data"
	default:
		return "unknown error"
	}
}

// UserRejected reports whether the user declined on the device.
func (e *StatusError) UserRejected() bool {
	return e.SW == SWConditionsNotMet
}

// WrongApp reports whether the Ethereum app is not the active application.
func (e *StatusError) WrongApp() bool {
	switch e.SW {
	case SWAppNotOpen, SWInsNotSupported, SWClaNotSupported, SWClaNotSupportedAlt:
		return true
	}
	return false
}

// Locked reports whether the device is locked.
func (e *StatusError) Locked() bool {
	switch e.SW {
	case SWLocked, SWLockedAlt, SWSecurityNotSatisfied:
		return true
	}
	return false
}

// Unwrap maps the status word onto the bridge error taxonomy.
func (e *StatusError) Unwrap() error {
	switch {
	case e.UserRejected():
		return wallet.ErrUserRejectedOnDevice
	case e.WrongApp(), e.Locked():
		return wallet.ErrSessionOpenFailed
	}
	return nil
}
