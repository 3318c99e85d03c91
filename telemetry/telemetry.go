// Package telemetry is the egress path: it consumes game events and
// either writes them to the serial link as framed JSON or parks them in
// the offline ring, flushing the ring on the identify handshake.
//
// The ring is owned by this task alone; nothing else touches it. The
// only state shared with the dispatcher is the AgentLink atomics.
package telemetry

import (
	"context"
	"io"

	"whacmole-go/bus"
	"whacmole-go/game"
	"whacmole-go/types"
	"whacmole-go/x/ring"
	"whacmole-go/x/timex"
)

// statusIntervalMs bounds how often a heartbeat status frame goes out
// while the agent is connected.
const statusIntervalMs = 5000

// Config wires a Task. Clock, Link, Events and Out are required.
// UniqueID supplies the factory serial for the identify frame; Status may
// be nil to disable heartbeat frames.
type Config struct {
	Clock    timex.Clock
	Link     *types.AgentLink
	Events   <-chan types.GameEvent
	Out      io.Writer
	UniqueID func() []byte
	Status   *bus.Bus
}

type Task struct {
	clock  timex.Clock
	link   *types.AgentLink
	events <-chan types.GameEvent
	out    io.Writer
	uid    func() []byte

	buf *ring.Ring[types.GameEvent]
	id  string // memoised device id

	statusSub      *bus.Subscription
	lastStatus     types.Status
	haveStatus     bool
	statusSentTick int64

	scratch []byte
}

func New(cfg Config) *Task {
	t := &Task{
		clock:  cfg.Clock,
		link:   cfg.Link,
		events: cfg.Events,
		out:    cfg.Out,
		uid:    cfg.UniqueID,
		buf:    ring.New[types.GameEvent](types.RingCap),
	}
	if cfg.Status != nil {
		t.statusSub = cfg.Status.Subscribe(game.StatusTopic)
	}
	return t
}

// Run polls until ctx is cancelled. Each iteration handles the agent
// timeout, a pending identify, queued events and the heartbeat.
func (t *Task) Run(ctx context.Context) {
	for ctx.Err() == nil {
		t.Poll()
		t.clock.SleepMs(10)
	}
}

// Poll is one iteration of the task loop. Exported so tests and the host
// simulator can drive the task synchronously.
func (t *Task) Poll() {
	now := t.clock.TickMs()

	// Drop the link after a minute of silence from the host.
	if t.link.Connected() && now-t.link.LastCmdTick() > types.AgentTimeoutMs {
		t.link.SetConnected(false)
	}

	if t.link.TakeIdentify() {
		t.link.SetConnected(true)
		t.link.TouchCmd(now)
		t.sendIdentify()
		t.flush()
	}

	t.drainEvents()
	t.pollStatus(now)
}

func (t *Task) drainEvents() {
	for {
		select {
		case ev := <-t.events:
			t.handle(ev)
		default:
			return
		}
	}
}

// handle transmits an event when the agent is listening, otherwise parks
// it in the ring. A full ring evicts its oldest entry; the host is not
// told.
func (t *Task) handle(ev types.GameEvent) {
	if t.link.Connected() {
		t.send(ev)
		return
	}
	t.buf.Push(ev)
}

// flush transmits every buffered event in FIFO order. The ring drains in
// one step, so a flush is never partial.
func (t *Task) flush() {
	for {
		ev, ok := t.buf.Pop()
		if !ok {
			return
		}
		t.send(ev)
	}
}

func (t *Task) send(ev types.GameEvent) {
	t.scratch = appendFrame(t.scratch[:0], ev)
	_, _ = t.out.Write(t.scratch)
}

func (t *Task) sendIdentify() {
	t.scratch = appendIdentify(t.scratch[:0], t.DeviceID())
	_, _ = t.out.Write(t.scratch)
}

// DeviceID returns the memoised hardware-derived id.
func (t *Task) DeviceID() string {
	if t.id == "" {
		t.id = deviceID(t.uid())
	}
	return t.id
}

// pollStatus keeps the latest retained status and, while connected,
// emits it as a frame at most every statusIntervalMs. Status is
// transient: it is never buffered offline.
func (t *Task) pollStatus(now int64) {
	if t.statusSub == nil {
		return
	}
loop:
	for {
		select {
		case m := <-t.statusSub.Channel():
			if st, ok := m.Payload.(types.Status); ok {
				t.lastStatus = st
				t.haveStatus = true
			}
		default:
			break loop
		}
	}
	if !t.haveStatus || !t.link.Connected() {
		return
	}
	if t.statusSentTick != 0 && now-t.statusSentTick < statusIntervalMs {
		return
	}
	t.scratch = appendStatus(t.scratch[:0], t.lastStatus)
	_, _ = t.out.Write(t.scratch)
	t.statusSentTick = now
}
