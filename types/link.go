package types

import "sync/atomic"

// AgentLink is the connection state shared between the command dispatcher
// and the telemetry task. All fields are word-sized atomics with relaxed
// semantics; the dispatcher writes, the telemetry task reads and writes.
type AgentLink struct {
	connected   atomic.Bool
	identifyReq atomic.Bool
	lastCmdTick atomic.Int64
}

func (l *AgentLink) Connected() bool     { return l.connected.Load() }
func (l *AgentLink) SetConnected(v bool) { l.connected.Store(v) }
func (l *AgentLink) LastCmdTick() int64  { return l.lastCmdTick.Load() }
func (l *AgentLink) TouchCmd(tick int64) { l.lastCmdTick.Store(tick) }
func (l *AgentLink) RequestIdentify()    { l.identifyReq.Store(true) }

func (l *AgentLink) IdentifyRequested() bool {
	return l.identifyReq.Load()
}

// TakeIdentify consumes a pending identify request.
func (l *AgentLink) TakeIdentify() bool {
	return l.identifyReq.Swap(false)
}

// AgentTimeoutMs is how long the link stays up with no received byte.
const AgentTimeoutMs = 60_000
