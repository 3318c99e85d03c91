package main

import (
	"context"
	"time"

	"whacmole-go/bus"
	"whacmole-go/drivers/max7325"
	"whacmole-go/errcode"
	"whacmole-go/game"
	"whacmole-go/platform"
	"whacmole-go/telemetry"
	"whacmole-go/types"
	"whacmole-go/uartcmd"
	"whacmole-go/x/gate"
	"whacmole-go/x/notify"
	"whacmole-go/x/timex"
)

func main() {
	// Allow USB CDC to enumerate and the debugger to attach before any
	// hardware access; rapid boot loops can lock out the debug port.
	time.Sleep(2 * time.Second)
	println("boot")

	if err := run(); err != nil {
		println("init failed:", err.Error())
	}
}

// run brings the board up in dependency order and then hands control to
// the tasks. Any initialisation error aborts before the tasks start.
func run() error {
	dev := platform.DefaultDevices()
	clock := timex.Real{}

	exp := max7325.New(dev.I2C)
	if err := exp.Configure(); err != nil {
		return &errcode.E{C: errcode.HWInitFailed, Op: "max7325 configure", Err: err}
	}

	events := make(chan types.GameEvent, types.EventQueueLen)
	cmds := make(chan types.Command, types.CmdQueueLen)
	link := &types.AgentLink{}
	statusBus := bus.New(8)
	pauseGate := gate.New()
	pauseNote := notify.New()

	ctx := context.Background()

	tel := telemetry.New(telemetry.Config{
		Clock:    clock,
		Link:     link,
		Events:   events,
		Out:      dev.Serial,
		UniqueID: dev.UniqueID,
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
	go uartcmd.NewDispatcher(pauseNote, cmds, link, clock).Run(ctx, dev.Serial)

	select {}
}
