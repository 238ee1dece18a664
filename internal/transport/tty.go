package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// OpenTTY opens the dongle through a kernel serial device such as
// /dev/ttyUSB0, for setups where ftdi_sio has been taught the dongle's
// product id. Line settings match OpenFTDI.
func OpenTTY(path string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", path, err)
	}

	// A short read timeout makes Read return with whatever is buffered,
	// so Connection's polling loop stays responsive to cancellation.
	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", path, err)
	}
	if err := port.SetDTR(true); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: assert DTR on %s: %w", path, err)
	}
	if err := port.SetRTS(true); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: assert RTS on %s: %w", path, err)
	}
	return port, nil
}
