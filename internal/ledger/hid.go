package ledger

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/zondax/hid"
)

const (
	VendorLedger         = 0x2c97
	UsagePageLedgerNanoS = 0xffa0
)

// ErrDeviceNotFound is returned when no Ledger matches the requested index.
var ErrDeviceNotFound = errors.New("ledger device not found")

// supported product ids (upper byte) and the HID interface they expose
var supportedLedgerProductID = map[uint8]int{
	0x40: 0, // Ledger Nano X
	0x10: 0, // Ledger Nano S
	0x50: 0, // Ledger Nano S Plus
	0x60: 0, // Ledger Stax
	0x70: 0, // Ledger Flex
}

type AdminHID struct{}

// NewAdmin returns the USB HID backed Admin.
func NewAdmin() *AdminHID {
	return &AdminHID{}
}

// Supported reports whether the platform was built with HID support.
func (admin *AdminHID) Supported() bool {
	return hid.Supported()
}

func isLedgerDevice(d hid.DeviceInfo) bool {
	if d.VendorID != VendorLedger {
		return false
	}
	if d.UsagePage == UsagePageLedgerNanoS {
		return true
	}

	// usage page can be empty on some platforms
	productIDMM := uint8(d.ProductID >> 8)
	interfaceID, supported := supportedLedgerProductID[productIDMM]
	return supported && interfaceID == d.Interface
}

func (admin *AdminHID) enumerate() []hid.DeviceInfo {
	var devices []hid.DeviceInfo
	for _, d := range hid.Enumerate(VendorLedger, 0) {
		if isLedgerDevice(d) {
			log.Debug().
				Str("path", d.Path).
				Hex("product_id", []byte{byte(d.ProductID >> 8), byte(d.ProductID)}).
				Str("product", d.Product).
				Msg("Found Ledger device")
			devices = append(devices, d)
		}
	}
	return devices
}

func (admin *AdminHID) CountDevices() int {
	return len(admin.enumerate())
}

func (admin *AdminHID) Connect(deviceIndex int) (Device, error) {
	devices := admin.enumerate()
	if len(devices) == 0 {
		log.Debug().Msg("No devices. Ledger locked or another program may have control of the device")
	}
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return nil, ErrDeviceNotFound
	}

	device, err := devices[deviceIndex].Open()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open HID device")
	}

	return &DeviceHID{device: device}, nil
}

// DeviceHID is a Ledger reachable over USB HID.
type DeviceHID struct {
	device *hid.Device
}

func (ledger *DeviceHID) Exchange(command []byte) ([]byte, error) {
	if len(command) < 5 {
		return nil, errors.New("APDU commands should not be smaller than 5")
	}

	log.Debug().Hex("apdu", command).Msg("[HID] =>")

	packets, err := WrapCommandAPDU(Channel, command, PacketSize)
	if err != nil {
		return nil, err
	}
	for _, packet := range packets {
		if _, err := ledger.device.Write(packet); err != nil {
			return nil, errors.Wrap(err, "failed to write to device")
		}
	}

	// no read deadline: the device may be waiting for the user to confirm
	assembler := newResponseAssembler(Channel)
	buffer := make([]byte, PacketSize)
	for {
		n, err := ledger.device.Read(buffer)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read from device")
		}
		done, err := assembler.Feed(buffer[:n])
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	response := assembler.Reply()
	log.Debug().Hex("apdu", response).Msg("[HID] <=")

	if len(response) < 2 {
		return nil, errors.Errorf("response too short: %d bytes", len(response))
	}

	return response, nil
}

func (ledger *DeviceHID) Close() error {
	return ledger.device.Close()
}
