package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/devhack/hacklet/internal/transport"
)

// Config is the decoded configuration file.
type Config struct {
	// JournalPath overrides where device registrations and samples are
	// recorded. Empty means ~/.hacklet.journal.
	JournalPath string `hcl:"journal,optional"`

	Dongle  *Dongle  `hcl:"dongle,block"`
	Devices []Device `hcl:"device,block"`
	Push    *Push    `hcl:"push,block"`
	Monitor *Monitor `hcl:"monitor,block"`
}

// Dongle holds the serial line settings. When TTYPath is set the dongle
// is reached through the named kernel device instead of libftdi.
type Dongle struct {
	VendorID  int    `hcl:"vendor_id,optional"`
	ProductID int    `hcl:"product_id,optional"`
	BaudRate  int    `hcl:"baud,optional"`
	TTYPath   string `hcl:"tty,optional"`
}

// Device is a named socket: a network id plus a channel on it.
type Device struct {
	Name    string `hcl:"name,label"`
	Network string `hcl:"network"`
	Socket  int    `hcl:"socket"`
}

// NetworkID parses the device's network id.
func (d Device) NetworkID() (uint16, error) {
	return ParseNetworkID(d.Network)
}

// Push configures the optional sample upload endpoint.
type Push struct {
	URL            string `hcl:"url"`
	Token          string `hcl:"token,optional"`
	TimeoutSeconds int    `hcl:"timeout_seconds,optional"`
}

// Monitor configures the polling loop's cron schedule.
type Monitor struct {
	Schedule string `hcl:"schedule,optional"`
}

// DefaultMonitorSchedule is used when the monitor block omits one.
const DefaultMonitorSchedule = "@every 5m"

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Dongle: &Dongle{
			VendorID:  transport.DefaultVendorID,
			ProductID: transport.DefaultProductID,
			BaudRate:  transport.DefaultBaudRate,
		},
	}
}

// Load reads and decodes the configuration file at path. A missing file
// is not an error: the defaults are returned instead.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %w", path, diags)
	}

	cfg := &Config{}
	if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
		return nil, fmt.Errorf("config: decode %s: %w", path, diags)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Dongle == nil {
		c.Dongle = Default().Dongle
		return
	}
	if c.Dongle.VendorID == 0 {
		c.Dongle.VendorID = transport.DefaultVendorID
	}
	if c.Dongle.ProductID == 0 {
		c.Dongle.ProductID = transport.DefaultProductID
	}
	if c.Dongle.BaudRate == 0 {
		c.Dongle.BaudRate = transport.DefaultBaudRate
	}
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Devices))
	for _, d := range c.Devices {
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("duplicate device %q", d.Name)
		}
		seen[d.Name] = struct{}{}

		if _, err := d.NetworkID(); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
		if d.Socket < 0 || d.Socket > 0xFFFF {
			return fmt.Errorf("device %q: socket %d out of range", d.Name, d.Socket)
		}
	}
	if c.Push != nil && c.Push.URL == "" {
		return fmt.Errorf("push block needs a url")
	}
	return nil
}

// FindDevice returns the named device block, if any.
func (c *Config) FindDevice(name string) (Device, bool) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// MonitorSchedule returns the configured cron spec or the default.
func (c *Config) MonitorSchedule() string {
	if c.Monitor != nil && c.Monitor.Schedule != "" {
		return c.Monitor.Schedule
	}
	return DefaultMonitorSchedule
}

// ParseNetworkID parses a network id written the way the dongle tools
// print it: four hex digits, with or without a 0x prefix.
func ParseNetworkID(s string) (uint16, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if trimmed == "" {
		return 0, fmt.Errorf("config: empty network id")
	}
	id, err := strconv.ParseUint(trimmed, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("config: bad network id %q: %w", s, err)
	}
	return uint16(id), nil
}
