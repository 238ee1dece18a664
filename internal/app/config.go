package app

import "fmt"

// Command names the CLI surface.
const (
	CmdOn         = "on"
	CmdOff        = "off"
	CmdRead       = "read"
	CmdCommission = "commission"
	CmdDevices    = "devices"
	CmdMonitor    = "monitor"
)

// Command is one parsed subcommand invocation.
type Command struct {
	Name string

	// DeviceRef names a device block from the config file. When set it
	// supplies the network and socket instead of the two fields below.
	DeviceRef string

	Network   uint16
	Socket    uint16
	HasTarget bool

	// Push uploads the drained samples after a read.
	Push bool
}

// Config holds everything an App instance needs to run.
type Config struct {
	Command    Command
	ConfigPath string

	// TTYPath overrides the config file's dongle transport.
	TTYPath string

	LogFormat string
	LogLevel  string
}

// targeted reports whether the command addresses one specific socket.
func (c Command) targeted() bool {
	switch c.Name {
	case CmdOn, CmdOff, CmdRead:
		return true
	}
	return false
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command.Name {
	case CmdOn, CmdOff, CmdRead, CmdCommission, CmdDevices, CmdMonitor:
	case "":
		return nil, fmt.Errorf("no command given")
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command.Name)
	}

	if cfg.Command.targeted() && !cfg.Command.HasTarget && cfg.Command.DeviceRef == "" {
		return nil, fmt.Errorf("%s needs a network and socket, or a named device", cfg.Command.Name)
	}
	if cfg.Command.Push && cfg.Command.Name != CmdRead {
		return nil, fmt.Errorf("--push only applies to read")
	}

	return &cfg, nil
}
