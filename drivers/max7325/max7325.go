// Package max7325 provides a driver for the MAX7325 I2C GPIO expander as
// wired on the Whac-A-Mole board: 8 push buttons on the input port, 8 LEDs
// on the output port. The two ports answer on separate bus addresses.
//
// Buttons are active-low: a released board reads 0xFF, a pressed button
// clears its pin bit. The LED port idles at 0x00 (all off).
//
// The board routes neither port in logical order, so the driver owns the
// logical-to-physical pin remap tables.
package max7325

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Bus addresses (7-bit).
const (
	AddrButtons = 0x68
	AddrLEDs    = 0x58
)

const (
	PortSize = 8

	// AllReleased is the button byte with nothing pressed (active-low).
	AllReleased = 0xFF
	// AllOff is the LED byte with every LED dark.
	AllOff = 0x00
)

var (
	ErrInit = errors.New("max7325: init transaction failed")
	ErrIO   = errors.New("max7325: i2c transaction failed")
)

// btnMap maps logical button index to physical pin.
// 0-3 are the top row, 4-7 the bottom, left to right.
var btnMap = [PortSize]uint8{6, 4, 2, 1, 7, 5, 3, 0}

// ledMap maps logical LED index to physical pin.
var ledMap = [PortSize]uint8{0, 2, 5, 7, 1, 3, 4, 6}

// Device wraps the two-port expander. The I2C bus must already be
// configured for standard mode.
type Device struct {
	bus drivers.I2C
	buf [1]byte
}

func New(bus drivers.I2C) *Device {
	return &Device{bus: bus}
}

// Configure wakes both ports: inputs pulled to the released state, outputs
// driven dark. Must succeed before the game tasks start.
func (d *Device) Configure() error {
	if err := d.bus.Tx(AddrButtons, []byte{AllReleased}, nil); err != nil {
		return ErrInit
	}
	if err := d.bus.Tx(AddrLEDs, []byte{AllOff}, nil); err != nil {
		return ErrInit
	}
	return nil
}

// ReadButtons returns the raw button byte. 0xFF means all released.
func (d *Device) ReadButtons() (uint8, error) {
	if err := d.bus.Tx(AddrButtons, nil, d.buf[:1]); err != nil {
		return AllReleased, ErrIO
	}
	return d.buf[0], nil
}

// WriteLEDs drives the raw LED byte previously built with LEDOn/LEDOff.
func (d *Device) WriteLEDs(pattern uint8) error {
	if err := d.bus.Tx(AddrLEDs, []byte{pattern}, nil); err != nil {
		return ErrIO
	}
	return nil
}

// IsPressed reports whether logical button btn is pressed in a raw byte.
func IsPressed(btn uint8, raw uint8) bool {
	if btn >= PortSize {
		return false
	}
	// active low: pressed pin bit is cleared
	return raw&(1<<btnMap[btn]) == 0
}

// PressRaw returns raw with logical button btn driven to its pressed
// (low) state. Used by host fakes and tests to build button bytes.
func PressRaw(btn uint8, raw uint8) uint8 {
	if btn >= PortSize {
		return raw
	}
	return raw &^ (1 << btnMap[btn])
}

// LEDOn sets the bit for a logical LED in a pattern byte.
func LEDOn(led uint8, pattern uint8) uint8 {
	if led >= PortSize {
		return pattern
	}
	return pattern | 1<<ledMap[led]
}

// LEDOff clears the bit for a logical LED in a pattern byte.
func LEDOff(led uint8, pattern uint8) uint8 {
	if led >= PortSize {
		return pattern
	}
	return pattern &^ (1 << ledMap[led])
}

// FirstN returns the pattern with the first n logical LEDs lit, used by the
// level-display animation.
func FirstN(n uint8) uint8 {
	var p uint8
	for i := uint8(0); i < n && i < PortSize; i++ {
		p = LEDOn(i, p)
	}
	return p
}
