package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"whacmole-go/bus"
	"whacmole-go/game"
	"whacmole-go/types"
)

// fakeClock is a settable tick source; Poll is driven directly so no
// sleeping is involved.
type fakeClock struct{ now int64 }

func (c *fakeClock) TickMs() int64     { return c.now }
func (c *fakeClock) SleepMs(ms uint32) { c.now += int64(ms) }

var testUID = []byte{0x01, 0x02, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}

type fixture struct {
	task   *Task
	clock  *fakeClock
	link   *types.AgentLink
	events chan types.GameEvent
	out    *bytes.Buffer
	bus    *bus.Bus
}

func newFixture(withBus bool) *fixture {
	f := &fixture{
		clock:  &fakeClock{now: 1000},
		link:   &types.AgentLink{},
		events: make(chan types.GameEvent, 256),
		out:    &bytes.Buffer{},
	}
	cfg := Config{
		Clock:    f.clock,
		Link:     f.link,
		Events:   f.events,
		Out:      f.out,
		UniqueID: func() []byte { return testUID },
	}
	if withBus {
		f.bus = bus.New(8)
		cfg.Status = f.bus
	}
	f.task = New(cfg)
	return f
}

func (f *fixture) lines(t *testing.T) []string {
	t.Helper()
	s := f.out.String()
	if s == "" {
		return nil
	}
	if !strings.HasSuffix(s, "\n") {
		t.Fatalf("output not newline-terminated: %q", s)
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func popEvent(i int) types.GameEvent {
	return types.GameEvent{Type: types.EventPopResult, Pop: types.PopResult{
		Mole:       uint8(i % 8),
		Outcome:    types.OutcomeHit,
		ReactionMs: uint16(5 * (i + 1)),
		Lives:      5,
		Level:      1,
		PopIndex:   uint8(i%10) + 1,
		PopsTotal:  10,
	}}
}

func TestDeviceIDFromSerialTail(t *testing.T) {
	f := newFixture(false)
	id := f.task.DeviceID()
	if id != "cdef123456" {
		t.Fatalf("device id = %q, want cdef123456", id)
	}
	if len(id) != 10 || strings.ToLower(id) != id {
		t.Fatalf("device id %q is not 10 lowercase hex chars", id)
	}
}

func TestIdentifyConnectsAndAnnounces(t *testing.T) {
	f := newFixture(false)
	f.link.RequestIdentify()
	f.task.Poll()

	lines := f.lines(t)
	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != `{"event_type":"identify","device_id":"cdef123456"}` {
		t.Fatalf("identify frame = %s", lines[0])
	}
	if !f.link.Connected() {
		t.Fatal("link not marked connected")
	}
}

func TestOfflineEventsBufferThenFlushInOrder(t *testing.T) {
	f := newFixture(false)
	for i := 0; i < 3; i++ {
		f.events <- popEvent(i)
	}
	f.task.Poll()
	if f.out.Len() != 0 {
		t.Fatalf("offline events leaked to serial: %q", f.out.String())
	}

	f.link.RequestIdentify()
	f.task.Poll()

	lines := f.lines(t)
	if len(lines) != 4 {
		t.Fatalf("line count = %d, want identify + 3 events", len(lines))
	}
	if !strings.Contains(lines[0], `"identify"`) {
		t.Fatalf("identify frame must come first, got %s", lines[0])
	}
	for i := 0; i < 3; i++ {
		var obj map[string]any
		if err := json.Unmarshal([]byte(lines[i+1]), &obj); err != nil {
			t.Fatalf("line %d: %v", i+1, err)
		}
		if got := obj["reaction_ms"].(float64); got != float64(5*(i+1)) {
			t.Errorf("flushed event %d out of order: reaction_ms=%v", i, got)
		}
	}
}

func TestRingOverflowKeepsLastHundred(t *testing.T) {
	f := newFixture(false)
	const n = 150
	for i := 0; i < n; i++ {
		// Feed through the queue in chunks the channel can hold.
		f.events <- popEvent(i)
		if i%50 == 49 {
			f.task.Poll()
		}
	}
	f.task.Poll()

	f.link.RequestIdentify()
	f.task.Poll()

	lines := f.lines(t)
	if len(lines) != types.RingCap+1 {
		t.Fatalf("line count = %d, want identify + %d", len(lines), types.RingCap)
	}
	// The survivors are the last 100, in emission order.
	for i := 0; i < types.RingCap; i++ {
		var obj map[string]any
		if err := json.Unmarshal([]byte(lines[i+1]), &obj); err != nil {
			t.Fatalf("line %d: %v", i+1, err)
		}
		want := float64(5 * (n - types.RingCap + i + 1))
		if got := obj["reaction_ms"].(float64); got != want {
			t.Fatalf("line %d reaction_ms = %v, want %v", i+1, got, want)
		}
	}
}

func TestConnectedEventsStreamImmediately(t *testing.T) {
	f := newFixture(false)
	f.link.RequestIdentify()
	f.task.Poll()
	f.out.Reset()

	f.events <- types.GameEvent{Type: types.EventSessionStart}
	f.events <- popEvent(0)
	f.task.Poll()

	lines := f.lines(t)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != `{"event_type":"session_start"}` {
		t.Fatalf("session_start frame = %s", lines[0])
	}
}

func TestFIFOAcrossBufferFlushBoundary(t *testing.T) {
	f := newFixture(false)
	f.link.RequestIdentify()
	f.task.Poll()

	// Two online, then drop the link, three buffered, reconnect.
	f.events <- popEvent(0)
	f.events <- popEvent(1)
	f.task.Poll()
	f.link.SetConnected(false)
	f.events <- popEvent(2)
	f.events <- popEvent(3)
	f.events <- popEvent(4)
	f.task.Poll()
	f.link.RequestIdentify()
	f.task.Poll()

	var reactions []float64
	for _, ln := range f.lines(t) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(ln), &obj); err != nil {
			t.Fatalf("bad line %q: %v", ln, err)
		}
		if obj["event_type"] == "pop_result" {
			reactions = append(reactions, obj["reaction_ms"].(float64))
		}
	}
	want := []float64{5, 10, 15, 20, 25}
	if len(reactions) != len(want) {
		t.Fatalf("pop lines = %v", reactions)
	}
	for i := range want {
		if reactions[i] != want[i] {
			t.Fatalf("order broken: %v", reactions)
		}
	}
}

func TestIdentifyIdempotent(t *testing.T) {
	f := newFixture(false)
	f.link.RequestIdentify()
	f.task.Poll()
	f.link.RequestIdentify()
	f.task.Poll()

	lines := f.lines(t)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	for _, ln := range lines {
		if !strings.Contains(ln, `"identify"`) {
			t.Fatalf("unexpected frame %s", ln)
		}
	}
}

func TestAgentTimeoutDropsLink(t *testing.T) {
	f := newFixture(false)
	f.link.RequestIdentify()
	f.task.Poll()
	if !f.link.Connected() {
		t.Fatal("not connected after identify")
	}
	f.out.Reset()

	f.clock.now += types.AgentTimeoutMs + 1
	f.events <- popEvent(0)
	f.task.Poll()

	if f.link.Connected() {
		t.Fatal("link survived the timeout")
	}
	if f.out.Len() != 0 {
		t.Fatalf("event transmitted after timeout: %q", f.out.String())
	}

	// The buffered event surfaces on the next identify.
	f.link.RequestIdentify()
	f.task.Poll()
	if got := len(f.lines(t)); got != 2 {
		t.Fatalf("lines after reconnect = %d, want identify + 1 event", got)
	}
}

func TestDisconnectByteSemantics(t *testing.T) {
	f := newFixture(false)
	f.link.RequestIdentify()
	f.task.Poll()
	f.out.Reset()

	// 'D' clears the flag without touching the tick.
	f.link.SetConnected(false)
	f.events <- popEvent(0)
	f.task.Poll()
	if f.out.Len() != 0 {
		t.Fatal("event sent while disconnected")
	}
}

func TestJSONRoundTripAllFrames(t *testing.T) {
	evs := []types.GameEvent{
		{Type: types.EventSessionStart},
		popEvent(3),
		{Type: types.EventPopResult, Pop: types.PopResult{Mole: 7, Outcome: types.OutcomeLate, ReactionMs: 1500, Lives: 4, Level: 1, PopIndex: 10, PopsTotal: 10}},
		{Type: types.EventPopResult, Pop: types.PopResult{Mole: 0, Outcome: types.OutcomeMiss, ReactionMs: 35, Lives: 0, Level: 8, PopIndex: 1, PopsTotal: 10}},
		{Type: types.EventLevelComplete, Level: 3},
		{Type: types.EventSessionEnd, Won: true},
		{Type: types.EventSessionEnd, Won: false},
	}
	for _, ev := range evs {
		line := appendFrame(nil, ev)
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			t.Fatalf("frame %q: %v", line, err)
		}
		re, err := json.Marshal(obj)
		if err != nil {
			t.Fatalf("reserialise: %v", err)
		}
		var obj2 map[string]any
		if err := json.Unmarshal(re, &obj2); err != nil {
			t.Fatalf("reparse: %v", err)
		}
		if len(obj) != len(obj2) {
			t.Fatalf("round trip changed %q", line)
		}
	}

	// Spot-check canonical shapes.
	if got := string(appendFrame(nil, types.GameEvent{Type: types.EventSessionEnd, Won: false})); got != "{\"event_type\":\"session_end\",\"win\":false}\n" {
		t.Fatalf("session_end frame = %q", got)
	}
	if got := string(appendFrame(nil, types.GameEvent{Type: types.EventLevelComplete, Level: 5})); got != "{\"event_type\":\"lvl_complete\",\"lvl\":5}\n" {
		t.Fatalf("lvl_complete frame = %q", got)
	}
	wantPop := `{"event_type":"pop_result","mole_id":3,"outcome":"hit","reaction_ms":245,"lives":5,"lvl":1,"pop":1,"pops_total":10}` + "\n"
	ev := types.GameEvent{Type: types.EventPopResult, Pop: types.PopResult{Mole: 3, Outcome: types.OutcomeHit, ReactionMs: 245, Lives: 5, Level: 1, PopIndex: 1, PopsTotal: 10}}
	if got := string(appendFrame(nil, ev)); got != wantPop {
		t.Fatalf("pop_result frame = %q", got)
	}
}

func TestStatusFrameRateLimited(t *testing.T) {
	f := newFixture(true)
	f.link.RequestIdentify()
	f.task.Poll()
	f.out.Reset()

	f.bus.Publish(&bus.Message{
		Topic:    game.StatusTopic,
		Payload:  types.Status{State: types.StateRunning, Level: 2, Pop: 4, Lives: 3},
		Retained: true,
	})
	f.task.Poll()

	lines := f.lines(t)
	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &obj); err != nil {
		t.Fatalf("status frame: %v", err)
	}
	if obj["event_type"] != "status" || obj["state"] != "running" || obj["lvl"].(float64) != 2 {
		t.Fatalf("status frame = %s", lines[0])
	}

	// Within the interval nothing more goes out, even on new status.
	f.bus.Publish(&bus.Message{Topic: game.StatusTopic, Payload: types.Status{State: types.StateRunning, Level: 2, Pop: 5, Lives: 3}})
	f.task.Poll()
	if got := len(f.lines(t)); got != 1 {
		t.Fatalf("status not rate limited: %d lines", got)
	}

	// After the interval the latest status goes out.
	f.clock.now += statusIntervalMs
	f.task.Poll()
	if got := len(f.lines(t)); got != 2 {
		t.Fatalf("status not resent after interval: %d lines", got)
	}
}

func TestStatusNeverBufferedOffline(t *testing.T) {
	f := newFixture(true)
	f.bus.Publish(&bus.Message{Topic: game.StatusTopic, Payload: types.Status{State: types.StateIdle, Lives: 5}, Retained: true})
	f.task.Poll()
	if f.out.Len() != 0 {
		t.Fatal("status frame sent while offline")
	}

	f.link.RequestIdentify()
	f.task.Poll()
	lines := f.lines(t)
	// identify, then the retained status — no replayed backlog.
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
}
