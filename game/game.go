// Package game drives the Whac-A-Mole state machine: the idle loader, the
// level/pop loops, and event emission. It owns the lives counter, the RNG
// and the pending command flags; everything it does to hardware goes
// through the Board seam so the whole machine runs on the host in tests.
package game

import (
	"context"

	"whacmole-go/bus"
	"whacmole-go/drivers/max7325"
	"whacmole-go/types"
	"whacmole-go/x/gate"
	"whacmole-go/x/mathx"
	"whacmole-go/x/timex"
)

// Board is the hardware surface the engine needs.
type Board interface {
	// ReadButtons returns the raw button byte; 0xFF means all released.
	ReadButtons() (uint8, error)
	// WriteLEDs drives the raw LED byte.
	WriteLEDs(pattern uint8) error
}

// StatusTopic carries the retained device status (types.Status).
var StatusTopic = bus.T("status", "game")

// Config wires an Engine. Board, Clock, Pause, Cmds and Events are
// required; Status may be nil to disable heartbeat publication.
type Config struct {
	Board  Board
	Clock  timex.Clock
	Pause  *gate.Gate
	Cmds   <-chan types.Command
	Events chan<- types.GameEvent
	Status *bus.Bus
}

type Engine struct {
	board  Board
	clock  timex.Clock
	pause  *gate.Gate
	cmds   <-chan types.Command
	events chan<- types.GameEvent
	status *bus.Bus

	ctx context.Context

	lives uint8
	rng   uint32

	// Pending intent, set only by drainCmds, cleared only at the
	// cooperative checkpoints that act on it.
	reqLvlIdx  uint8
	lvlChange  bool
	resetReq   bool
	startReq   bool
	resetAbort bool
}

func New(cfg Config) *Engine {
	return &Engine{
		board:  cfg.Board,
		clock:  cfg.Clock,
		pause:  cfg.Pause,
		cmds:   cfg.Cmds,
		events: cfg.Events,
		status: cfg.Status,
	}
}

// Run is the game task loop: idle until started, play a session, pause
// briefly, go idle again. Returns only when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.ctx = ctx
	for ctx.Err() == nil {
		if err := e.awaitStart(); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient I2C trouble in idle: back off and keep loading.
			e.sleepSliced(100)
			continue
		}
		if ctx.Err() != nil {
			return
		}
		e.run()
		if !e.resetAbort {
			e.sleepSliced(2000)
		}
	}
}

// step is one cooperative slice: honour a pause, then sleep. Pause blocks
// here, so a paused interval never shows up in any elapsed counter.
func (e *Engine) step(ms uint32) {
	e.pause.Wait()
	e.clock.SleepMs(ms)
}

func (e *Engine) sleepSliced(ms uint32) {
	for ms > 0 && e.ctx.Err() == nil {
		s := mathx.Min(ms, 10)
		e.step(s)
		ms -= s
	}
}

// drainCmds empties the command queue into the pending-intent flags.
// Reset wipes the other pending flags.
func (e *Engine) drainCmds() {
	for {
		select {
		case c := <-e.cmds:
			switch c.Type {
			case types.CmdSetLevel:
				e.reqLvlIdx = uint8(mathx.Clamp(int(c.Level)-1, 0, types.Levels-1))
				e.lvlChange = true
			case types.CmdReset:
				e.resetReq = true
				e.startReq = false
				e.lvlChange = false
			case types.CmdStart:
				e.startReq = true
			}
		default:
			return
		}
	}
}

// awaitStart animates the idle loader until a start condition fires.
// Exit priority per slice: reset (consume, stay idle), start, button.
func (e *Engine) awaitStart() error {
	e.publishStatus(types.StateIdle, 0, 0)

	for e.ctx.Err() == nil {
		for i := uint8(0); i < types.LEDCount; i++ {
			if err := e.board.WriteLEDs(max7325.LEDOn(i, 0)); err != nil {
				return err
			}

			for j := 0; j < 50; j++ {
				e.step(10)
				if e.ctx.Err() != nil {
					return e.ctx.Err()
				}

				e.drainCmds()
				if e.resetReq {
					e.resetReq = false
					continue
				}
				if e.startReq {
					e.startReq = false
					return e.ledsOff()
				}

				raw, err := e.board.ReadButtons()
				if err != nil {
					return err
				}
				if raw != max7325.AllReleased {
					return e.ledsOff()
				}
			}
		}
	}
	return e.ctx.Err()
}

func (e *Engine) ledsOff() error { return e.board.WriteLEDs(max7325.AllOff) }

func (e *Engine) emit(ev types.GameEvent) {
	// Best-effort: a full queue drops the event, gameplay never blocks.
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) publishStatus(st types.GameState, lvl, pop uint8) {
	if e.status == nil {
		return
	}
	e.status.Publish(&bus.Message{
		Topic:    StatusTopic,
		Payload:  types.Status{State: st, Level: lvl, Pop: pop, Lives: e.lives},
		Retained: true,
	})
}
