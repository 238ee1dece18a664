package dongle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devhack/hacklet/internal/ctxlog"
	"github.com/devhack/hacklet/internal/wire"
)

// Conn is the buffered serial link the session runs over. It is satisfied
// by *transport.Connection.
type Conn interface {
	Transmit(ctx context.Context, frame []byte) error
	Receive(ctx context.Context, n int) ([]byte, error)
}

// CommissionTimeout bounds how long Commission listens for a new device
// before giving up.
const CommissionTimeout = 30 * time.Second

// ErrNoDeviceFound is returned when Commission's listening window closes
// without any device announcing itself.
var ErrNoDeviceFound = errors.New("dongle: no device announced itself")

// Dongle is an open session with the USB dongle. Open has already run the
// boot exchange, so every method can assume a responsive device.
type Dongle struct {
	conn     Conn
	deviceID uint64
	now      func() time.Time

	// commissionTimeout overrides CommissionTimeout when non-zero.
	commissionTimeout time.Duration
}

// Open boots the dongle and confirms the boot, mirroring the stock
// client's session preamble.
func Open(ctx context.Context, conn Conn) (*Dongle, error) {
	d := &Dongle{conn: conn, now: time.Now}
	logger := ctxlog.FromContext(ctx)

	logger.Debug("Booting dongle.")
	if err := conn.Transmit(ctx, wire.Boot()); err != nil {
		return nil, err
	}
	f, err := d.receiveFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("dongle: boot: %w", err)
	}
	boot, err := wire.ParseBootReply(f)
	if err != nil {
		return nil, fmt.Errorf("dongle: boot: %w", err)
	}
	d.deviceID = boot.DeviceID

	if err := conn.Transmit(ctx, wire.BootConfirm()); err != nil {
		return nil, err
	}
	if err := d.expectStatus(ctx, wire.CmdBootConfirmReply); err != nil {
		return nil, fmt.Errorf("dongle: boot confirm: %w", err)
	}

	logger.Info("Dongle booted.", "device_id", fmt.Sprintf("0x%X", boot.DeviceID))
	return d, nil
}

// DeviceID reports the dongle's own hardware id, learned during boot.
func (d *Dongle) DeviceID() uint64 {
	return d.deviceID
}

// Commission opens the network, waits for an uncommissioned device to
// announce itself, sets the new device's clock, and closes the network
// again. The network is relocked even when no device shows up.
func (d *Dongle) Commission(ctx context.Context) (*wire.Broadcast, error) {
	logger := ctxlog.FromContext(ctx)

	if err := d.UnlockNetwork(ctx); err != nil {
		return nil, err
	}

	timeout := d.commissionTimeout
	if timeout == 0 {
		timeout = CommissionTimeout
	}
	listenCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found, listenErr := d.listenForBroadcast(listenCtx)

	// Relock before reporting the outcome, found device or not. A failed
	// relock must not mask what the listening window produced.
	if lockErr := d.LockNetwork(ctx); lockErr != nil {
		if listenErr != nil {
			return nil, errors.Join(listenErr, lockErr)
		}
		return nil, fmt.Errorf("dongle: found device 0x%X but relock failed: %w",
			found.DeviceID, lockErr)
	}
	if listenErr != nil {
		return nil, listenErr
	}

	logger.Info("Found device.",
		"device_id", fmt.Sprintf("0x%X", found.DeviceID),
		"network_id", fmt.Sprintf("0x%04X", found.NetworkID))
	return found, nil
}

// listenForBroadcast drains frames until a device announcement arrives or
// the context expires, then pushes the current time to the new device.
func (d *Dongle) listenForBroadcast(ctx context.Context) (*wire.Broadcast, error) {
	logger := ctxlog.FromContext(ctx)
	for {
		logger.Info("Listening for devices...")
		f, err := d.receiveFrame(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrNoDeviceFound
			}
			return nil, fmt.Errorf("dongle: commission: %w", err)
		}
		if f.Command != wire.CmdBroadcast {
			logger.Debug("Ignoring frame while commissioning.", "command", f.Command.String())
			continue
		}

		found, err := wire.ParseBroadcast(f)
		if err != nil {
			return nil, fmt.Errorf("dongle: commission: %w", err)
		}
		if err := d.updateTime(ctx, found.NetworkID); err != nil {
			return nil, err
		}
		return found, nil
	}
}

// SelectNetwork runs the handshake that addresses subsequent commands to
// the given network.
func (d *Dongle) SelectNetwork(ctx context.Context, network uint16) error {
	if err := d.conn.Transmit(ctx, wire.Handshake(network)); err != nil {
		return err
	}
	if err := d.expectStatus(ctx, wire.CmdHandshake); err != nil {
		return fmt.Errorf("dongle: select network 0x%04X: %w", network, err)
	}
	return nil
}

// Switch forces a socket on or off by writing an always-on or always-off
// schedule bitmap.
func (d *Dongle) Switch(ctx context.Context, network, channel uint16, on bool) error {
	logger := ctxlog.FromContext(ctx)

	bitmap := wire.AlwaysOff()
	if on {
		bitmap = wire.AlwaysOn()
	}
	logger.Info("Switching socket.",
		"network_id", fmt.Sprintf("0x%04X", network), "channel", channel, "on", on)

	if err := d.conn.Transmit(ctx, wire.Schedule(network, channel, bitmap)); err != nil {
		return err
	}
	if err := d.expectStatus(ctx, wire.CmdSchedule); err != nil {
		return fmt.Errorf("dongle: switch: %w", err)
	}
	return nil
}

// RequestSamples drains a socket's buffered wattage samples. The dongle
// acknowledges the request first, then sends the variable-length batch.
func (d *Dongle) RequestSamples(ctx context.Context, network, channel uint16) (*wire.SamplesReply, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Requesting samples.",
		"network_id", fmt.Sprintf("0x%04X", network), "channel", channel)

	if err := d.conn.Transmit(ctx, wire.Samples(network, channel)); err != nil {
		return nil, err
	}
	if err := d.expectStatus(ctx, wire.CmdSamples); err != nil {
		return nil, fmt.Errorf("dongle: samples ack: %w", err)
	}

	f, err := d.receiveFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("dongle: samples: %w", err)
	}
	reply, err := wire.ParseSamplesReply(f)
	if err != nil {
		return nil, fmt.Errorf("dongle: samples: %w", err)
	}

	for _, s := range reply.Samples {
		logger.Info("Sample.", "watts", s.Watts, "age", s.Age)
	}
	logger.Info("Samples drained.",
		"returned", len(reply.Samples), "remaining", reply.StoredCount)
	return reply, nil
}

// LockNetwork closes the network to new devices.
func (d *Dongle) LockNetwork(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("Locking network.")
	if err := d.conn.Transmit(ctx, wire.Lock()); err != nil {
		return err
	}
	if err := d.expectStatus(ctx, wire.CmdLockReply); err != nil {
		return fmt.Errorf("dongle: lock network: %w", err)
	}
	return nil
}

// UnlockNetwork opens the network so uncommissioned devices may join.
func (d *Dongle) UnlockNetwork(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("Unlocking network.")
	if err := d.conn.Transmit(ctx, wire.Unlock()); err != nil {
		return err
	}
	if err := d.expectStatus(ctx, wire.CmdLockReply); err != nil {
		return fmt.Errorf("dongle: unlock network: %w", err)
	}
	return nil
}

// updateTime pushes the host clock to a freshly commissioned device. The
// dongle acknowledges with a status frame and then a network-addressed
// reply.
func (d *Dongle) updateTime(ctx context.Context, network uint16) error {
	if err := d.conn.Transmit(ctx, wire.UpdateTime(network, d.now())); err != nil {
		return err
	}
	if err := d.expectStatus(ctx, wire.CmdUpdateTime); err != nil {
		return fmt.Errorf("dongle: update time: %w", err)
	}

	f, err := d.receiveFrame(ctx)
	if err != nil {
		return fmt.Errorf("dongle: update time: %w", err)
	}
	if _, err := wire.ParseUpdateTimeReply(f); err != nil {
		return fmt.Errorf("dongle: update time: %w", err)
	}
	return nil
}

// receiveFrame reads one length-prefixed frame: four header bytes, then
// the declared payload plus the checksum byte.
func (d *Dongle) receiveFrame(ctx context.Context) (*wire.Frame, error) {
	head, err := d.conn.Receive(ctx, 4)
	if err != nil {
		return nil, err
	}
	rest, err := d.conn.Receive(ctx, int(head[3])+1)
	if err != nil {
		return nil, err
	}
	return wire.Decode(append(head, rest...))
}

// expectStatus reads one frame and checks it is the wanted single-byte
// status reply.
func (d *Dongle) expectStatus(ctx context.Context, want wire.Command) error {
	f, err := d.receiveFrame(ctx)
	if err != nil {
		return err
	}
	_, err = wire.ParseStatus(f, want)
	return err
}
