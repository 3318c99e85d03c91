package uartcmd

import (
	"context"

	"whacmole-go/x/gate"
	"whacmole-go/x/notify"
)

// PauseController waits for pause notifications and toggles the game
// task's gate. Suspension is idempotent and leaves the command and event
// queues alone: enqueued events keep draining while the game is parked.
type PauseController struct {
	n    *notify.Notifier
	game *gate.Gate
}

func NewPauseController(n *notify.Notifier, game *gate.Gate) *PauseController {
	return &PauseController{n: n, game: game}
}

func (p *PauseController) Run(ctx context.Context) {
	for {
		if err := p.n.Wait(ctx); err != nil {
			return
		}
		p.game.Toggle()
	}
}
