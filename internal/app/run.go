package app

import (
	"context"
	"fmt"

	"github.com/devhack/hacklet/internal/ctxlog"
	"github.com/devhack/hacklet/internal/dongle"
	"github.com/devhack/hacklet/internal/journal"
	"github.com/devhack/hacklet/internal/monitor"
	"github.com/devhack/hacklet/internal/push"
	"github.com/devhack/hacklet/internal/transport"
)

// Run executes the parsed command. Commands that talk to hardware open
// the dongle session first; `devices` only needs the journal.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	cmd := a.cfg.Command
	a.logger.Debug("App.Run method started.", "command", cmd.Name)

	path, err := a.journalPath()
	if err != nil {
		return err
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()
	if j.Truncated() {
		a.logger.Warn("Journal had a torn trailing record; it was dropped.", "path", path)
	}

	if cmd.Name == CmdDevices {
		return a.listDevices(j)
	}

	port, err := a.openPort()
	if err != nil {
		return err
	}
	conn := transport.New(port)
	defer conn.Close()

	d, err := dongle.Open(ctx, conn)
	if err != nil {
		return err
	}

	switch cmd.Name {
	case CmdOn, CmdOff:
		return a.runSwitch(ctx, d, cmd.Name == CmdOn)
	case CmdRead:
		return a.runRead(ctx, d, j)
	case CmdCommission:
		return a.runCommission(ctx, d, j)
	case CmdMonitor:
		return a.runMonitor(ctx, d, j)
	default:
		// NewConfig already rejected anything else.
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
}

// openPort picks the transport: an explicit tty (flag, then config file)
// wins over direct libftdi access.
func (a *App) openPort() (transport.Port, error) {
	dcfg := a.file.Dongle
	tty := a.cfg.TTYPath
	if tty == "" {
		tty = dcfg.TTYPath
	}
	if tty != "" {
		return transport.OpenTTY(tty, dcfg.BaudRate)
	}
	return transport.OpenFTDI(dcfg.VendorID, dcfg.ProductID, dcfg.BaudRate)
}

// target resolves which socket a command addresses: a named device from
// the config file, or the -n/-s pair.
func (a *App) target() (network, socket uint16, err error) {
	cmd := a.cfg.Command
	if cmd.DeviceRef == "" {
		return cmd.Network, cmd.Socket, nil
	}

	dev, ok := a.file.FindDevice(cmd.DeviceRef)
	if !ok {
		return 0, 0, fmt.Errorf("device %q is not in the config file", cmd.DeviceRef)
	}
	network, err = dev.NetworkID()
	if err != nil {
		return 0, 0, err
	}
	return network, uint16(dev.Socket), nil
}

func (a *App) runSwitch(ctx context.Context, d *dongle.Dongle, on bool) error {
	network, socket, err := a.target()
	if err != nil {
		return err
	}

	if err := d.LockNetwork(ctx); err != nil {
		return err
	}
	if err := d.SelectNetwork(ctx, network); err != nil {
		return err
	}
	if err := d.Switch(ctx, network, socket, on); err != nil {
		return err
	}

	state := "off"
	if on {
		state = "on"
	}
	fmt.Fprintf(a.outW, "Turned %s network 0x%04X, socket %d\n", state, network, socket)
	return nil
}

func (a *App) runRead(ctx context.Context, d *dongle.Dongle, j *journal.Journal) error {
	network, socket, err := a.target()
	if err != nil {
		return err
	}
	if a.cfg.Command.Push && a.file.Push == nil {
		return fmt.Errorf("--push given but the config file has no push block")
	}

	if err := d.LockNetwork(ctx); err != nil {
		return err
	}
	if err := d.SelectNetwork(ctx, network); err != nil {
		return err
	}
	reply, err := d.RequestSamples(ctx, network, socket)
	if err != nil {
		return err
	}

	rec, err := j.AppendSamples(reply)
	if err != nil {
		return err
	}

	for _, s := range rec.Samples {
		fmt.Fprintf(a.outW, "%dw at age %d\n", s.Watts, s.Age)
	}
	fmt.Fprintf(a.outW, "%d returned, %d remaining\n", len(rec.Samples), rec.StoredCount)

	if a.cfg.Command.Push {
		client := push.New(a.file.Push)
		defer client.Close()
		return client.PushSamples(ctx, rec)
	}
	return nil
}

func (a *App) runCommission(ctx context.Context, d *dongle.Dongle, j *journal.Journal) error {
	found, err := d.Commission(ctx)
	if err != nil {
		return err
	}
	if _, err := j.RegisterDevice(found); err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Found device 0x%X on network 0x%04X\n", found.DeviceID, found.NetworkID)
	return nil
}

func (a *App) runMonitor(ctx context.Context, d *dongle.Dongle, j *journal.Journal) error {
	var pusher monitor.Pusher
	if a.file.Push != nil {
		client := push.New(a.file.Push)
		defer client.Close()
		pusher = client
	}

	m := monitor.New(d, j, pusher, a.file.MonitorSchedule())
	return m.Run(ctx)
}

// listDevices prints every registered device, annotated with its config
// file name when one matches the network.
func (a *App) listDevices(j *journal.Journal) error {
	devices := j.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(a.outW, "No devices commissioned yet.")
		return nil
	}

	names := make(map[uint16]string, len(a.file.Devices))
	for _, d := range a.file.Devices {
		if network, err := d.NetworkID(); err == nil {
			names[network] = d.Name
		}
	}

	for _, d := range devices {
		name := names[d.NetworkID]
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(a.outW, "%-16s network 0x%04X  device 0x%X  commissioned %s\n",
			name, d.NetworkID, d.DeviceID, d.CommissionedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
