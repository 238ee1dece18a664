package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Header is the first byte of every frame in either direction.
const Header byte = 0x02

// Command identifies the frame type. Requests use the 0x40xx/0xA2xx range,
// dongle replies set the high bit of the low command byte (0x4004 -> 0x4084).
type Command uint16

const (
	CmdBoot             Command = 0x4004
	CmdBootReply        Command = 0x4084
	CmdBootConfirm      Command = 0x4000
	CmdBootConfirmReply Command = 0x4080
	CmdLock             Command = 0xA236
	CmdLockReply        Command = 0xA0F9
	CmdUpdateTime       Command = 0x4022
	CmdUpdateTimeReply  Command = 0x40A2
	CmdHandshake        Command = 0x4003
	CmdSamples          Command = 0x4024
	CmdSamplesReply     Command = 0x40A4
	CmdSchedule         Command = 0x4023
	CmdBroadcast        Command = 0xA013
)

// String renders the command word the way the protocol notes write it.
func (c Command) String() string {
	return fmt.Sprintf("0x%04X", uint16(c))
}

var (
	// ErrBadHeader is returned when a frame does not start with Header.
	ErrBadHeader = errors.New("wire: bad frame header")

	// ErrBadChecksum is returned when the trailing checksum byte does not
	// match the XOR of the frame body.
	ErrBadChecksum = errors.New("wire: checksum mismatch")

	// ErrTruncated is returned when a buffer is too short to hold the
	// frame it claims to contain.
	ErrTruncated = errors.New("wire: truncated frame")
)

// headerLen is the number of bytes before the payload: header byte,
// command word and payload length byte.
const headerLen = 4

// Checksum computes the XOR-8 checksum over the command word, the declared
// payload length and the payload bytes. The header byte is excluded.
func Checksum(cmd Command, declaredLen byte, payload []byte) byte {
	sum := byte(cmd>>8) ^ byte(cmd) ^ declaredLen
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// Encode builds a complete frame for the given command and payload.
func Encode(cmd Command, payload []byte) []byte {
	return encodeDeclared(cmd, byte(len(payload)), payload)
}

// encodeDeclared builds a frame with an explicit declared length. The boot
// confirm request declares a one byte payload but carries none, so the
// declared length cannot always be derived from the payload.
func encodeDeclared(cmd Command, declaredLen byte, payload []byte) []byte {
	buf := make([]byte, 0, headerLen+len(payload)+1)
	buf = append(buf, Header)
	buf = binary.BigEndian.AppendUint16(buf, uint16(cmd))
	buf = append(buf, declaredLen)
	buf = append(buf, payload...)
	buf = append(buf, Checksum(cmd, declaredLen, payload))
	return buf
}

// Frame is a decoded dongle frame: the command word plus its raw payload.
// Typed accessors for each reply live in response.go.
type Frame struct {
	Command Command
	Payload []byte
}

// Decode validates and decodes a complete frame. The buffer must contain
// exactly the frame: four header bytes, the declared payload and the
// checksum byte.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < headerLen+1 {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrTruncated, len(buf), headerLen+1)
	}
	if buf[0] != Header {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadHeader, buf[0])
	}

	cmd := Command(binary.BigEndian.Uint16(buf[1:3]))
	declaredLen := buf[3]
	want := headerLen + int(declaredLen) + 1
	if len(buf) != want {
		return nil, fmt.Errorf("%w: command %s declares %d payload bytes, frame is %d bytes, want %d",
			ErrTruncated, cmd, declaredLen, len(buf), want)
	}

	payload := buf[headerLen : headerLen+int(declaredLen)]
	if got := buf[len(buf)-1]; got != Checksum(cmd, declaredLen, payload) {
		return nil, fmt.Errorf("%w: command %s, got 0x%02X", ErrBadChecksum, cmd, got)
	}

	return &Frame{Command: cmd, Payload: payload}, nil
}
