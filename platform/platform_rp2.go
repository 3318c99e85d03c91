//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// rp2Serial adapts uartx to the SerialPort seam.
type rp2Serial struct{ u *uartx.UART }

func (p *rp2Serial) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *rp2Serial) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}

// DefaultDevices configures the RP2 board: i2c0 in standard mode for the
// MAX7325, UART0 at 115200 to the host relay, and the flash unique id.
func DefaultDevices() Devices {
	i2c := machine.I2C0
	_ = i2c.Configure(machine.I2CConfig{
		Frequency: 100 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})

	return Devices{
		I2C:      i2c,
		Serial:   &rp2Serial{u: u},
		UniqueID: func() []byte { return machine.DeviceID() },
	}
}
