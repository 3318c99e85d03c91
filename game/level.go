package game

import (
	"whacmole-go/drivers/max7325"
	"whacmole-go/types"
	"whacmole-go/x/mathx"
)

// verdict is the abort sentinel returned by level and pop routines.
type verdict uint8

const (
	vCompleted verdict = iota
	vSwitch            // pending level change targets another level
	vReset             // reset pending, abort the session
	vDead              // lives exhausted
	vCancelled         // context cancelled
)

// run plays one session: SessionStart, levels until death, reset or the
// final level, SessionEnd with the matching feedback animation.
func (e *Engine) run() {
	e.lives = types.Lives
	e.rng = types.RNGSeed
	e.resetAbort = false

	e.drainCmds()
	lvlIdx := uint8(mathx.Clamp(int(e.reqLvlIdx), 0, types.Levels-1))
	e.lvlChange = false
	e.resetReq = false
	e.startReq = false

	e.emit(types.GameEvent{Type: types.EventSessionStart})
	e.publishStatus(types.StateRunning, lvlIdx+1, 0)

	for lvlIdx < types.Levels {
		switch e.runLevel(lvlIdx) {
		case vCancelled:
			return
		case vReset:
			e.resetReq = false
			e.resetAbort = true
			e.endSession(false)
			return
		case vDead:
			e.endSession(false)
			e.sleepSliced(500)
			e.flash(0xFF, 3, 500)
			return
		case vSwitch:
			lvlIdx = e.takeLevelChange()
		case vCompleted:
			e.drainCmds()
			if e.resetReq {
				e.resetReq = false
				e.resetAbort = true
				e.endSession(false)
				return
			}
			if e.lvlChange {
				lvlIdx = e.takeLevelChange()
				continue
			}
			lvlIdx++
		}
	}

	e.endSession(true)
	e.sleepSliced(500)
	e.flash(0xFF, 100, 50)
}

func (e *Engine) takeLevelChange() uint8 {
	e.lvlChange = false
	return uint8(mathx.Clamp(int(e.reqLvlIdx), 0, types.Levels-1))
}

func (e *Engine) endSession(won bool) {
	e.emit(types.GameEvent{Type: types.EventSessionEnd, Won: won})
	e.publishStatus(types.StateEnding, 0, 0)
}

// checkpoint drains commands and reports the pending intent for lvlIdx.
func (e *Engine) checkpoint(lvlIdx uint8) verdict {
	if e.ctx.Err() != nil {
		return vCancelled
	}
	e.drainCmds()
	if e.resetReq {
		return vReset
	}
	if e.lvlChange {
		if e.takeLevelChangePeek() != lvlIdx {
			return vSwitch
		}
		// Same level requested: consume the no-op.
		e.lvlChange = false
	}
	return vCompleted
}

func (e *Engine) takeLevelChangePeek() uint8 {
	return uint8(mathx.Clamp(int(e.reqLvlIdx), 0, types.Levels-1))
}

// runLevel plays the level-display animation and the level's pops.
func (e *Engine) runLevel(lvlIdx uint8) verdict {
	e.lvlShow(lvlIdx)

	for pop := uint8(1); pop <= types.PopsPerLvl; pop++ {
		e.publishStatus(types.StateRunning, lvlIdx+1, pop)

		if v := e.checkpoint(lvlIdx); v != vCompleted {
			return v
		}

		delay := 250 + e.nextRand()%751
		e.sleepSliced(delay)

		if v := e.checkpoint(lvlIdx); v != vCompleted {
			return v
		}

		mole, outcome, reactionMs := e.popDo(lvlIdx)
		if e.ctx.Err() != nil {
			return vCancelled
		}

		if outcome != types.OutcomeHit {
			e.lives--
		}
		e.emit(types.GameEvent{Type: types.EventPopResult, Pop: types.PopResult{
			Mole:       mole,
			Outcome:    outcome,
			ReactionMs: reactionMs,
			Lives:      e.lives,
			Level:      lvlIdx + 1,
			PopIndex:   pop,
			PopsTotal:  types.PopsPerLvl,
		}})

		if outcome != types.OutcomeHit {
			e.flash(0xFF, 1, 100)
			if e.lives == 0 {
				return vDead
			}
		}

		if v := e.checkpoint(lvlIdx); v != vCompleted {
			return v
		}
	}

	e.emit(types.GameEvent{Type: types.EventLevelComplete, Level: lvlIdx + 1})
	e.publishStatus(types.StateRunning, lvlIdx+1, 0)
	return vCompleted
}

// lvlShow lights level+1 LEDs, holds, flashes them three times.
func (e *Engine) lvlShow(lvlIdx uint8) {
	pattern := max7325.FirstN(lvlIdx + 1)
	_ = e.board.WriteLEDs(pattern)
	e.sleepSliced(1000)
	e.flash(pattern, 3, 500)
	e.sleepSliced(500)
}

func (e *Engine) flash(pattern uint8, n int, ms uint32) {
	for i := 0; i < n && e.ctx.Err() == nil; i++ {
		_ = e.board.WriteLEDs(pattern)
		e.sleepSliced(ms)
		_ = e.board.WriteLEDs(max7325.AllOff)
		e.sleepSliced(ms)
	}
}

// popDo runs a single mole appearance: debounce, light the target LED,
// poll at 5 ms until a press or the level's window expires. A failed
// button read counts as no press observed; a pop that never sees a press
// ends Late with reaction_ms equal to the full window.
func (e *Engine) popDo(lvlIdx uint8) (mole uint8, outcome types.Outcome, reactionMs uint16) {
	durationMs := types.PopDurations[lvlIdx]
	target := uint8(e.nextRand() % types.LEDCount)

	// Debounce: wait for all buttons released, bounded.
	dbMs := uint16(0)
	for e.ctx.Err() == nil {
		raw, err := e.board.ReadButtons()
		if err == nil && raw == max7325.AllReleased {
			break
		}
		e.step(10)
		dbMs += 10
		if dbMs > 50 {
			break
		}
	}

	_ = e.board.WriteLEDs(max7325.LEDOn(target, 0))

	const pollMs = 5
	elapsed := uint16(0)
	for elapsed < durationMs && e.ctx.Err() == nil {
		raw, err := e.board.ReadButtons()
		if err == nil && raw != max7325.AllReleased {
			_ = e.ledsOff()
			if max7325.IsPressed(target, raw) {
				return target, types.OutcomeHit, elapsed
			}
			return target, types.OutcomeMiss, elapsed
		}
		e.step(pollMs)
		elapsed += pollMs
	}

	_ = e.ledsOff()
	return target, types.OutcomeLate, durationMs
}
