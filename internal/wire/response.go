package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnexpectedCommand is returned when a frame carries a different
// command word than the caller was waiting for.
var ErrUnexpectedCommand = errors.New("wire: unexpected command")

func expect(f *Frame, want Command, payloadLen int) error {
	if f.Command != want {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedCommand, f.Command, want)
	}
	if len(f.Payload) < payloadLen {
		return fmt.Errorf("%w: command %s payload is %d bytes, want %d",
			ErrTruncated, f.Command, len(f.Payload), payloadLen)
	}
	return nil
}

// BootReply is the dongle's answer to a boot request. The leading twelve
// payload bytes are opaque hardware info the stock client never
// interprets; the device id identifies the dongle itself.
type BootReply struct {
	HardwareInfo [12]byte
	DeviceID     uint64
	Extra        uint16
}

// ParseBootReply decodes a boot reply frame.
func ParseBootReply(f *Frame) (*BootReply, error) {
	if err := expect(f, CmdBootReply, 22); err != nil {
		return nil, err
	}
	r := &BootReply{
		DeviceID: binary.BigEndian.Uint64(f.Payload[12:20]),
		Extra:    binary.BigEndian.Uint16(f.Payload[20:22]),
	}
	copy(r.HardwareInfo[:], f.Payload[:12])
	return r, nil
}

// ParseStatus decodes the single status byte replies share: boot confirm,
// handshake, schedule, lock and the samples acknowledgement.
func ParseStatus(f *Frame, want Command) (byte, error) {
	if err := expect(f, want, 1); err != nil {
		return 0, err
	}
	return f.Payload[0], nil
}

// Broadcast is the unsolicited frame an uncommissioned device emits while
// the network is unlocked.
type Broadcast struct {
	NetworkID uint16
	DeviceID  uint64
	Data      byte
}

// ParseBroadcast decodes a device announcement frame.
func ParseBroadcast(f *Frame) (*Broadcast, error) {
	if err := expect(f, CmdBroadcast, 11); err != nil {
		return nil, err
	}
	return &Broadcast{
		NetworkID: binary.BigEndian.Uint16(f.Payload[0:2]),
		DeviceID:  binary.BigEndian.Uint64(f.Payload[2:10]),
		Data:      f.Payload[10],
	}, nil
}

// UpdateTimeReply is the second, network-addressed answer to an update
// time request; the first is a plain status frame.
type UpdateTimeReply struct {
	NetworkID uint16
	Status    byte
}

// ParseUpdateTimeReply decodes an update time reply frame.
func ParseUpdateTimeReply(f *Frame) (*UpdateTimeReply, error) {
	if err := expect(f, CmdUpdateTimeReply, 3); err != nil {
		return nil, err
	}
	return &UpdateTimeReply{
		NetworkID: binary.BigEndian.Uint16(f.Payload[0:2]),
		Status:    f.Payload[2],
	}, nil
}

// Sample is one buffered wattage reading. The dongle packs each reading
// into a little-endian word: wattage in the low byte, the age counter in
// the high byte.
type Sample struct {
	Watts uint8
	Age   uint8
}

// SamplesReply carries a socket's buffered readings. StoredCount reports
// how many samples remain buffered on the device after this batch.
type SamplesReply struct {
	NetworkID   uint16
	ChannelID   uint16
	Flags       uint16
	DeviceTime  uint32
	StoredCount uint32
	Samples     []Sample
}

// ParseSamplesReply decodes a samples reply frame. The payload is
// variable length: a fixed fourteen byte head, then one little-endian
// word per sample.
func ParseSamplesReply(f *Frame) (*SamplesReply, error) {
	const head = 14
	if err := expect(f, CmdSamplesReply, head); err != nil {
		return nil, err
	}

	count := int(f.Payload[10])
	if len(f.Payload) < head+2*count {
		return nil, fmt.Errorf("%w: samples reply declares %d samples, payload is %d bytes",
			ErrTruncated, count, len(f.Payload))
	}

	r := &SamplesReply{
		NetworkID:  binary.BigEndian.Uint16(f.Payload[0:2]),
		ChannelID:  binary.BigEndian.Uint16(f.Payload[2:4]),
		Flags:      binary.BigEndian.Uint16(f.Payload[4:6]),
		DeviceTime: binary.LittleEndian.Uint32(f.Payload[6:10]),
		// Three bytes, little-endian.
		StoredCount: uint32(f.Payload[11]) | uint32(f.Payload[12])<<8 | uint32(f.Payload[13])<<16,
		Samples:     make([]Sample, 0, count),
	}
	for i := 0; i < count; i++ {
		word := binary.LittleEndian.Uint16(f.Payload[head+2*i : head+2*i+2])
		r.Samples = append(r.Samples, Sample{Watts: uint8(word), Age: uint8(word >> 8)})
	}
	return r, nil
}
