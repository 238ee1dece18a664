package app

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devhack/hacklet/internal/config"
	"github.com/devhack/hacklet/internal/journal"
	"github.com/devhack/hacklet/internal/wire"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	t.Run("accepts a targeted command", func(t *testing.T) {
		cfg, err := NewConfig(Config{Command: Command{
			Name: CmdOn, Network: 0x0010, Socket: 1, HasTarget: true,
		}})
		require.NoError(t, err)
		assert.Equal(t, CmdOn, cfg.Command.Name)
	})

	t.Run("accepts a named device instead of ids", func(t *testing.T) {
		_, err := NewConfig(Config{Command: Command{Name: CmdRead, DeviceRef: "lamp"}})
		require.NoError(t, err)
	})

	t.Run("rejects a targeted command without a target", func(t *testing.T) {
		_, err := NewConfig(Config{Command: Command{Name: CmdOff}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "needs a network and socket")
	})

	t.Run("rejects an empty command", func(t *testing.T) {
		_, err := NewConfig(Config{})
		require.Error(t, err)
	})

	t.Run("rejects an unknown command", func(t *testing.T) {
		_, err := NewConfig(Config{Command: Command{Name: "explode"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown command")
	})

	t.Run("rejects push outside read", func(t *testing.T) {
		_, err := NewConfig(Config{Command: Command{
			Name: CmdOn, HasTarget: true, Push: true,
		}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--push")
	})
}

func TestNewAppPanicsOnBadConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`dongle {`), 0o600))

	require.Panics(t, func() {
		NewApp(&bytes.Buffer{}, &Config{
			Command:    Command{Name: CmdDevices},
			ConfigPath: path,
		})
	})
}

func testApp(t *testing.T, cmd Command, file *config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	if file == nil {
		file = config.Default()
	}
	return &App{
		outW:   out,
		logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		cfg:    &Config{Command: cmd},
		file:   file,
	}, out
}

func TestTarget(t *testing.T) {
	t.Parallel()

	t.Run("uses the explicit ids", func(t *testing.T) {
		a, _ := testApp(t, Command{Name: CmdOn, Network: 0x1234, Socket: 2, HasTarget: true}, nil)

		network, socket, err := a.target()
		require.NoError(t, err)
		assert.Equal(t, uint16(0x1234), network)
		assert.Equal(t, uint16(2), socket)
	})

	t.Run("resolves a named device", func(t *testing.T) {
		file := config.Default()
		file.Devices = []config.Device{{Name: "lamp", Network: "0xBEEF", Socket: 3}}
		a, _ := testApp(t, Command{Name: CmdOn, DeviceRef: "lamp"}, file)

		network, socket, err := a.target()
		require.NoError(t, err)
		assert.Equal(t, uint16(0xBEEF), network)
		assert.Equal(t, uint16(3), socket)
	})

	t.Run("errors on an unknown device name", func(t *testing.T) {
		a, _ := testApp(t, Command{Name: CmdOn, DeviceRef: "ghost"}, nil)

		_, _, err := a.target()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not in the config file")
	})
}

func TestListDevices(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal")
	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.RegisterDevice(&wire.Broadcast{NetworkID: 0xBEEF, DeviceID: 0xABCD})
	require.NoError(t, err)

	file := config.Default()
	file.Devices = []config.Device{{Name: "lamp", Network: "0xBEEF", Socket: 0}}
	a, out := testApp(t, Command{Name: CmdDevices}, file)

	require.NoError(t, a.listDevices(j))
	assert.Contains(t, out.String(), "lamp")
	assert.Contains(t, out.String(), "0xBEEF")
	assert.Contains(t, out.String(), "0xABCD")
}

func TestListDevicesEmpty(t *testing.T) {
	t.Parallel()

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	a, out := testApp(t, Command{Name: CmdDevices}, nil)
	require.NoError(t, a.listDevices(j))
	assert.Contains(t, out.String(), "No devices commissioned yet.")
}
