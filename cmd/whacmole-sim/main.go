//go:build !rp2040 && !rp2350

// whacmole-sim runs the full device stack on the host against a fake
// board. Keys a-h tap buttons 0-7; command bytes (P R S I D 1-8) go to
// the dispatcher exactly as they would arrive over serial. Telemetry
// frames appear on stdout, device status on stderr.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"whacmole-go/bus"
	"whacmole-go/drivers/max7325"
	"whacmole-go/game"
	"whacmole-go/platform"
	"whacmole-go/telemetry"
	"whacmole-go/types"
	"whacmole-go/uartcmd"
	"whacmole-go/x/gate"
	"whacmole-go/x/notify"
	"whacmole-go/x/timex"
)

const dim = "\033[2m"
const rst = "\033[0m"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := timex.Real{}
	fakeBus := platform.NewFakeExpanderBus()

	exp := max7325.New(fakeBus)
	if err := exp.Configure(); err != nil {
		fmt.Fprintln(os.Stderr, "configure:", err)
		os.Exit(1)
	}

	events := make(chan types.GameEvent, types.EventQueueLen)
	cmds := make(chan types.Command, types.CmdQueueLen)
	link := &types.AgentLink{}
	statusBus := bus.New(8)
	pauseGate := gate.New()
	pauseNote := notify.New()

	tel := telemetry.New(telemetry.Config{
		Clock:    clock,
		Link:     link,
		Events:   events,
		Out:      os.Stdout,
		UniqueID: func() []byte { return []byte{0x51, 0x3A, 0x00, 0xB0, 0x07} },
		Status:   statusBus,
	})
	go tel.Run(ctx)

	eng := game.New(game.Config{
		Board:  exp,
		Clock:  clock,
		Pause:  pauseGate,
		Cmds:   cmds,
		Events: events,
		Status: statusBus,
	})
	go eng.Run(ctx)

	go uartcmd.NewPauseController(pauseNote, pauseGate).Run(ctx)
	disp := uartcmd.NewDispatcher(pauseNote, cmds, link, clock)

	go watchStatus(statusBus)

	fmt.Fprintln(os.Stderr, "whacmole-sim: a-h tap buttons 0-7, P/R/S/I/D/1-8 are commands, q quits")

	in := bufio.NewReader(os.Stdin)
	for {
		b, err := in.ReadByte()
		if err != nil {
			return
		}
		switch {
		case b == 'q':
			return
		case b >= 'a' && b <= 'h':
			go tap(fakeBus, b-'a')
		case b == '\n' || b == '\r' || b == ' ':
		default:
			disp.HandleByte(b)
		}
	}
}

// tap presses a logical button for long enough that the 5 ms poll loop
// cannot miss it.
func tap(f *platform.FakeExpanderBus, btn uint8) {
	f.Press(btn)
	time.Sleep(150 * time.Millisecond)
	f.Release()
}

func watchStatus(b *bus.Bus) {
	sub := b.Subscribe(game.StatusTopic)
	for m := range sub.Channel() {
		if st, ok := m.Payload.(types.Status); ok {
			fmt.Fprintf(os.Stderr, "%s[status] state=%s lvl=%d pop=%d lives=%d%s\n",
				dim, st.State, st.Level, st.Pop, st.Lives, rst)
		}
	}
}
