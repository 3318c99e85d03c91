package gate

import "sync"

// Gate suspends and resumes a cooperating task. The task calls Wait at
// every slice boundary; while suspended, Wait blocks. This is the
// goroutine equivalent of kernel task suspend/resume: latency is one
// slice rather than one scheduler tick.
type Gate struct {
	mu        sync.Mutex
	resumed   chan struct{} // closed while running
	suspended bool
}

func New() *Gate {
	g := &Gate{resumed: make(chan struct{})}
	close(g.resumed)
	return g
}

// Suspend parks the task at its next Wait. Idempotent.
func (g *Gate) Suspend() {
	g.mu.Lock()
	if !g.suspended {
		g.suspended = true
		g.resumed = make(chan struct{})
	}
	g.mu.Unlock()
}

// Resume releases a suspended task. Idempotent.
func (g *Gate) Resume() {
	g.mu.Lock()
	if g.suspended {
		g.suspended = false
		close(g.resumed)
	}
	g.mu.Unlock()
}

// Toggle flips the state and reports whether the gate is now suspended.
func (g *Gate) Toggle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.suspended {
		g.suspended = false
		close(g.resumed)
		return false
	}
	g.suspended = true
	g.resumed = make(chan struct{})
	return true
}

// Wait blocks while the gate is suspended.
func (g *Gate) Wait() {
	g.mu.Lock()
	ch := g.resumed
	g.mu.Unlock()
	<-ch
}

func (g *Gate) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suspended
}
