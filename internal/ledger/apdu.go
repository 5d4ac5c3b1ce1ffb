package ledger

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// Channel is the HID communication channel, fixed to 0x0101 for compatibility.
	Channel uint16 = 0x0101
	// PacketSize is the HID report size used by every supported model.
	PacketSize = 64

	tagAPDU    = 0x05
	headerSize = 5
)

var errReplyInvalidHeader = errors.New("invalid reply header")

// WrapCommandAPDU splits an APDU into HID packets. Every packet starts with the
// channel, the APDU tag and a big-endian sequence index; the first packet also
// carries the two byte total length.
func WrapCommandAPDU(channel uint16, command []byte, packetSize int) ([][]byte, error) {
	if packetSize <= headerSize+2 {
		return nil, errors.Errorf("packet size must be larger than %d", headerSize+2)
	}
	if len(command) > 0xffff {
		return nil, errors.Errorf("command too long: %d bytes", len(command))
	}

	payload := make([]byte, 2, 2+len(command))
	binary.BigEndian.PutUint16(payload, uint16(len(command)))
	payload = append(payload, command...)

	var packets [][]byte
	for seq := 0; len(payload) > 0; seq++ {
		packet := make([]byte, packetSize)
		binary.BigEndian.PutUint16(packet[0:2], channel)
		packet[2] = tagAPDU
		binary.BigEndian.PutUint16(packet[3:5], uint16(seq))

		n := copy(packet[headerSize:], payload)
		payload = payload[n:]
		packets = append(packets, packet)
	}

	return packets, nil
}

// responseAssembler reassembles a framed reply from successive HID packets.
type responseAssembler struct {
	channel uint16
	seq     uint16
	total   int
	reply   []byte
}

func newResponseAssembler(channel uint16) *responseAssembler {
	return &responseAssembler{channel: channel, total: -1}
}

// Feed consumes one packet and reports whether the reply is complete.
func (a *responseAssembler) Feed(packet []byte) (bool, error) {
	if len(packet) < headerSize {
		return false, errors.Errorf("packet too short: %d bytes", len(packet))
	}
	if binary.BigEndian.Uint16(packet[0:2]) != a.channel || packet[2] != tagAPDU {
		return false, errReplyInvalidHeader
	}
	if seq := binary.BigEndian.Uint16(packet[3:5]); seq != a.seq {
		return false, errors.Errorf("unexpected packet sequence %d, want %d", seq, a.seq)
	}
	a.seq++

	data := packet[headerSize:]
	if a.total < 0 {
		if len(data) < 2 {
			return false, errors.New("first packet lacks length")
		}
		a.total = int(binary.BigEndian.Uint16(data[0:2]))
		a.reply = make([]byte, 0, a.total)
		data = data[2:]
	}

	left := a.total - len(a.reply)
	if len(data) >= left {
		a.reply = append(a.reply, data[:left]...)
		return true, nil
	}
	a.reply = append(a.reply, data...)
	return false, nil
}

// Reply returns the reassembled payload.
func (a *responseAssembler) Reply() []byte {
	return a.reply
}

// UnwrapResponseAPDU reassembles a complete reply from a sequence of packets.
func UnwrapResponseAPDU(channel uint16, packets [][]byte) ([]byte, error) {
	assembler := newResponseAssembler(channel)
	for _, packet := range packets {
		done, err := assembler.Feed(packet)
		if err != nil {
			return nil, err
		}
		if done {
			return assembler.Reply(), nil
		}
	}
	return nil, errors.New("incomplete reply")
}
