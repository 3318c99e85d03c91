// Package platform hands the firmware its hardware: the expander's I2C
// bus, the serial link and the unique-serial source. The rp2 build wires
// real peripherals; every other build gets host fakes so the full stack
// runs under go test and in the simulator.
package platform

import (
	"context"
	"io"

	"tinygo.org/x/drivers"
)

// SerialPort is the byte link to the host relay.
type SerialPort interface {
	io.Writer
	// RecvSomeContext blocks until at least one byte is available or ctx
	// is cancelled, reading what is ready without waiting for more.
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

// Devices is everything the bootstrap needs from the board.
type Devices struct {
	I2C      drivers.I2C
	Serial   SerialPort
	UniqueID func() []byte
}
