//go:build !rp2040 && !rp2350

package platform

import (
	"context"
	"os"
	"sync"

	"whacmole-go/drivers/max7325"
)

// ---------------------------- I2C (host) ------------------------------

// FakeExpanderBus emulates the MAX7325 on the I2C seam: reads of the
// button address serve a programmable byte, writes to the LED address are
// captured. Safe for concurrent use.
type FakeExpanderBus struct {
	mu      sync.Mutex
	btnByte uint8
	ledByte uint8
	inited  bool
}

func NewFakeExpanderBus() *FakeExpanderBus {
	return &FakeExpanderBus{btnByte: max7325.AllReleased}
}

func (f *FakeExpanderBus) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch addr {
	case max7325.AddrButtons:
		if len(w) > 0 {
			f.inited = true
		}
		if len(r) > 0 {
			r[0] = f.btnByte
		}
	case max7325.AddrLEDs:
		if len(w) > 0 {
			f.ledByte = w[0]
		}
	}
	return nil
}

// SetButtons programs the raw button byte future reads will see.
func (f *FakeExpanderBus) SetButtons(raw uint8) {
	f.mu.Lock()
	f.btnByte = raw
	f.mu.Unlock()
}

// Press sets one logical button pressed (active-low), leaving any others
// as they are. Release returns every button to released.
func (f *FakeExpanderBus) Press(btn uint8) {
	f.mu.Lock()
	f.btnByte = max7325.PressRaw(btn, f.btnByte)
	f.mu.Unlock()
}

func (f *FakeExpanderBus) Release() {
	f.mu.Lock()
	f.btnByte = max7325.AllReleased
	f.mu.Unlock()
}

// LEDs returns the last written LED byte.
func (f *FakeExpanderBus) LEDs() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ledByte
}

// ---------------------------- Serial (host) ---------------------------

// stdioSerial maps the serial link onto the process stdio: frames go to
// stdout, command bytes come from stdin.
type stdioSerial struct {
	rx   chan []byte
	once sync.Once
}

func (s *stdioSerial) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (s *stdioSerial) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	s.once.Do(func() {
		s.rx = make(chan []byte, 8)
		go func() {
			b := make([]byte, 64)
			for {
				n, err := os.Stdin.Read(b)
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, b[:n])
					s.rx <- chunk
				}
				if err != nil {
					close(s.rx)
					return
				}
			}
		}()
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case chunk, ok := <-s.rx:
		if !ok {
			return 0, os.ErrClosed
		}
		return copy(buf, chunk), nil
	}
}

// ---------------------------- Assembly --------------------------------

var hostUID = []byte{0xFA, 0xCE, 0x00, 0xDE, 0xAD, 0xBE, 0xEF, 0x01}

// DefaultDevices returns the host complement: fake expander, stdio
// serial, fixed unique serial.
func DefaultDevices() Devices {
	return Devices{
		I2C:      NewFakeExpanderBus(),
		Serial:   &stdioSerial{},
		UniqueID: func() []byte { return hostUID },
	}
}
