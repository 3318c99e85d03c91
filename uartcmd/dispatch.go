// Package uartcmd is the command ingress path: a dispatcher that drains
// serial RX and routes single-byte commands, and the pause controller
// that suspends and resumes the game task.
//
// In the firmware model the dispatcher body runs in interrupt context, so
// it does no work itself: pause becomes a coalescing notification, game
// commands are enqueued non-blocking, identify and disconnect are atomic
// flag writes.
package uartcmd

import (
	"context"

	"whacmole-go/types"
	"whacmole-go/x/notify"
	"whacmole-go/x/timex"
)

// RXPort is the receive side of the serial link.
type RXPort interface {
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

type Dispatcher struct {
	pause *notify.Notifier
	cmds  chan<- types.Command
	link  *types.AgentLink
	clock timex.Clock
}

func NewDispatcher(pause *notify.Notifier, cmds chan<- types.Command, link *types.AgentLink, clock timex.Clock) *Dispatcher {
	return &Dispatcher{pause: pause, cmds: cmds, link: link, clock: clock}
}

// HandleByte routes one received command byte.
//
//	P    toggle pause        R  reset       S  start
//	1-8  set level           I  identify    D  disconnect
//
// Every byte except D refreshes the connectivity timer. Unknown bytes are
// ignored. A full command queue drops the byte silently.
func (d *Dispatcher) HandleByte(b byte) {
	if b != 'D' {
		d.link.TouchCmd(d.clock.TickMs())
	}

	switch {
	case b == 'P':
		d.pause.Post()
	case b == 'D':
		d.link.SetConnected(false)
	case b == 'R':
		d.send(types.Command{Type: types.CmdReset})
	case b == 'S':
		d.send(types.Command{Type: types.CmdStart})
	case b >= '1' && b <= '8':
		d.send(types.Command{Type: types.CmdSetLevel, Level: b - '0'})
	case b == 'I':
		d.link.RequestIdentify()
	}
}

func (d *Dispatcher) send(c types.Command) {
	select {
	case d.cmds <- c:
	default:
		// Commands are user-driven and rare; drop on full.
	}
}

// Run drains the RX port until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, port RXPort) {
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := port.RecvSomeContext(ctx, buf)
		for i := 0; i < n; i++ {
			d.HandleByte(buf[i])
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.clock.SleepMs(10)
		}
	}
}
