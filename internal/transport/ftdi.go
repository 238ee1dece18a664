package transport

import (
	"fmt"

	"github.com/ziutek/ftdi"
)

// The dongle enumerates with FTDI's vendor id and a custom product id, so
// the kernel's ftdi_sio driver usually leaves it alone and libftdi talks
// to it directly.
const (
	DefaultVendorID  = 0x0403
	DefaultProductID = 0x8C81
	DefaultBaudRate  = 115200
)

// OpenFTDI opens the dongle over libftdi and applies the line settings the
// firmware expects: reset bitmode, 115200 baud, no flow control, DTR and
// RTS asserted.
func OpenFTDI(vendorID, productID, baud int) (Port, error) {
	dev, err := ftdi.OpenFirst(vendorID, productID, ftdi.ChannelAny)
	if err != nil {
		return nil, fmt.Errorf("transport: open ftdi device %04x:%04x: %w", vendorID, productID, err)
	}

	if err := configureFTDI(dev, baud); err != nil {
		dev.Close()
		return nil, err
	}
	return dev, nil
}

func configureFTDI(dev *ftdi.Device, baud int) error {
	if err := dev.SetBitmode(0x00, ftdi.ModeReset); err != nil {
		return fmt.Errorf("transport: reset bitmode: %w", err)
	}
	if err := dev.SetBaudrate(baud); err != nil {
		return fmt.Errorf("transport: set baudrate %d: %w", baud, err)
	}
	if err := dev.SetFlowControl(ftdi.FlowCtrlDisable); err != nil {
		return fmt.Errorf("transport: disable flow control: %w", err)
	}
	if err := dev.SetDTR(1); err != nil {
		return fmt.Errorf("transport: assert DTR: %w", err)
	}
	if err := dev.SetRTS(1); err != nil {
		return fmt.Errorf("transport: assert RTS: %w", err)
	}
	return nil
}
