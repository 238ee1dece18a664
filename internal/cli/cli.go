package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/devhack/hacklet/internal/app"
	"github.com/devhack/hacklet/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const usageHeader = `
hacklet - Control ThinkEco Modlet smart power strips over a USB dongle.

Usage:
  hacklet [options] <command> [command options]

Commands:
  on          Turn a socket on.
  off         Turn a socket off.
  read        Read buffered wattage samples from a socket.
  commission  Listen for a new device and register it.
  devices     List commissioned devices.
  monitor     Poll registered devices on a schedule.

Options:
`

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating if the program should exit cleanly,
// or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("hacklet", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usageHeader)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the config file. Defaults to ~/.hacklet.hcl.")
	portFlag := flagSet.String("port", "", "Serial device path (ex. /dev/ttyUSB0). Overrides direct FTDI access.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	debugFlag := flagSet.Bool("d", false, "Shorthand for -log-level debug.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *debugFlag {
		logLevel = "debug"
	}

	command, shouldExit, err := parseCommand(flagSet.Arg(0), flagSet.Args()[1:], output)
	if err != nil || shouldExit {
		return nil, shouldExit, err
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = app.DefaultConfigPath()
	}

	appConfig, err := app.NewConfig(app.Config{
		Command:    command,
		ConfigPath: configPath,
		TTYPath:    *portFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return appConfig, false, nil
}

// parseCommand parses one subcommand and its flags.
func parseCommand(name string, args []string, output io.Writer) (app.Command, bool, error) {
	switch name {
	case app.CmdOn, app.CmdOff, app.CmdRead:
		return parseTargeted(name, args, output)
	case app.CmdCommission, app.CmdDevices, app.CmdMonitor:
		if len(args) > 0 {
			return app.Command{}, false, &ExitError{
				Code:    2,
				Message: fmt.Sprintf("%s takes no arguments", name),
			}
		}
		return app.Command{Name: name}, false, nil
	default:
		return app.Command{}, false, &ExitError{
			Code:    2,
			Message: fmt.Sprintf("unknown command %q", name),
		}
	}
}

// parseTargeted parses the commands that address one socket: on, off
// and read.
func parseTargeted(name string, args []string, output io.Writer) (app.Command, bool, error) {
	flagSet := flag.NewFlagSet("hacklet "+name, flag.ContinueOnError)
	flagSet.SetOutput(output)

	networkFlag := flagSet.String("n", "", "The network id (ex. 0x1234).")
	socketFlag := flagSet.Int("s", 0, "The socket id (ex. 0).")
	deviceFlag := flagSet.String("device", "", "A device name from the config file, instead of -n/-s.")

	var pushFlag *bool
	if name == app.CmdRead {
		pushFlag = flagSet.Bool("push", false, "Upload the samples to the configured push endpoint.")
	}

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return app.Command{}, true, nil
		}
		return app.Command{}, false, &ExitError{Code: 2, Message: err.Error()}
	}

	command := app.Command{Name: name, DeviceRef: *deviceFlag}
	if pushFlag != nil {
		command.Push = *pushFlag
	}

	if *networkFlag != "" {
		network, err := config.ParseNetworkID(*networkFlag)
		if err != nil {
			return app.Command{}, false, &ExitError{Code: 2, Message: err.Error()}
		}
		if *socketFlag < 0 || *socketFlag > 0xFFFF {
			return app.Command{}, false, &ExitError{
				Code:    2,
				Message: fmt.Sprintf("socket id %d out of range", *socketFlag),
			}
		}
		command.Network = network
		command.Socket = uint16(*socketFlag)
		command.HasTarget = true
	}

	return command, false, nil
}
