package notify

import "context"

// Notifier is a single-slot wake signal between a producer (interrupt
// context in the firmware model) and one waiting task. Posts coalesce:
// one pending notification is enough.
type Notifier struct {
	ch chan struct{}
}

func New() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Post wakes the waiter. Never blocks; a pending post absorbs repeats.
func (n *Notifier) Post() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until a post arrives or ctx is cancelled.
func (n *Notifier) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-n.ch:
		return nil
	}
}

// C exposes the wake channel for select loops.
func (n *Notifier) C() <-chan struct{} { return n.ch }
