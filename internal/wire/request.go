package wire

import (
	"encoding/binary"
	"time"
)

// Boot encodes the request that starts a dongle session.
func Boot() []byte {
	return Encode(CmdBoot, nil)
}

// BootConfirm encodes the request that acknowledges a boot reply. The
// dongle expects the declared payload length to be one even though the
// frame carries no payload bytes.
func BootConfirm() []byte {
	return encodeDeclared(CmdBootConfirm, 1, nil)
}

// Magic words carried by the lock and unlock requests. Only the 0x9001
// suffix differs; 0xFCFF appears to address the lock table itself.
const (
	lockWord   uint32 = 0xFCFF0001
	unlockWord uint32 = 0xFCFF9001
)

// Lock encodes the request that closes the network to new devices.
func Lock() []byte {
	payload := binary.BigEndian.AppendUint32(nil, lockWord)
	return Encode(CmdLock, payload)
}

// Unlock encodes the request that opens the network so uncommissioned
// devices can announce themselves.
func Unlock() []byte {
	payload := binary.BigEndian.AppendUint32(nil, unlockWord)
	return Encode(CmdLock, payload)
}

// UpdateTime encodes the request that sets a device's clock. The network
// id travels big-endian, the unix timestamp little-endian.
func UpdateTime(network uint16, t time.Time) []byte {
	payload := make([]byte, 0, 6)
	payload = binary.BigEndian.AppendUint16(payload, network)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(t.Unix()))
	return Encode(CmdUpdateTime, payload)
}

// Handshake encodes the request that selects a network for the commands
// that follow. The trailing 0x0500 word is constant in every capture.
func Handshake(network uint16) []byte {
	payload := make([]byte, 0, 4)
	payload = binary.BigEndian.AppendUint16(payload, network)
	payload = binary.BigEndian.AppendUint16(payload, 0x0500)
	return Encode(CmdHandshake, payload)
}

// Samples encodes the request that asks a socket to return its buffered
// wattage samples.
func Samples(network, channel uint16) []byte {
	payload := make([]byte, 0, 6)
	payload = binary.BigEndian.AppendUint16(payload, network)
	payload = binary.BigEndian.AppendUint16(payload, channel)
	payload = binary.BigEndian.AppendUint16(payload, 0x0A00)
	return Encode(CmdSamples, payload)
}

// ScheduleBitmap is the weekly on/off schedule a socket stores: 56 bytes,
// one per three-hour slot. The stock firmware treats byte five as the
// mode byte.
type ScheduleBitmap [56]byte

// AlwaysOn returns the schedule bitmap that forces a socket on.
func AlwaysOn() ScheduleBitmap {
	return constantSchedule(0x25)
}

// AlwaysOff returns the schedule bitmap that forces a socket off.
func AlwaysOff() ScheduleBitmap {
	return constantSchedule(0xA5)
}

func constantSchedule(mode byte) ScheduleBitmap {
	var s ScheduleBitmap
	for i := range s {
		s[i] = 0x7F
	}
	s[5] = mode
	return s
}

// Schedule encodes the request that writes a socket's schedule bitmap.
func Schedule(network, channel uint16, bitmap ScheduleBitmap) []byte {
	payload := make([]byte, 0, 4+len(bitmap))
	payload = binary.BigEndian.AppendUint16(payload, network)
	payload = binary.BigEndian.AppendUint16(payload, channel)
	payload = append(payload, bitmap[:]...)
	return Encode(CmdSchedule, payload)
}
