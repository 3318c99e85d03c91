package telemetry

import (
	"whacmole-go/types"
	"whacmole-go/x/conv"
)

// Frames are newline-terminated JSON objects with a canonical field
// order. They are built with appenders so the hot path never allocates
// once the scratch buffer has grown to frame size.

func appendFrame(dst []byte, ev types.GameEvent) []byte {
	switch ev.Type {
	case types.EventSessionStart:
		dst = append(dst, `{"event_type":"session_start"}`...)
	case types.EventPopResult:
		p := ev.Pop
		dst = append(dst, `{"event_type":"pop_result","mole_id":`...)
		dst = conv.AppendUint(dst, uint32(p.Mole))
		dst = append(dst, `,"outcome":"`...)
		dst = append(dst, p.Outcome.String()...)
		dst = append(dst, `","reaction_ms":`...)
		dst = conv.AppendUint(dst, uint32(p.ReactionMs))
		dst = append(dst, `,"lives":`...)
		dst = conv.AppendUint(dst, uint32(p.Lives))
		dst = append(dst, `,"lvl":`...)
		dst = conv.AppendUint(dst, uint32(p.Level))
		dst = append(dst, `,"pop":`...)
		dst = conv.AppendUint(dst, uint32(p.PopIndex))
		dst = append(dst, `,"pops_total":`...)
		dst = conv.AppendUint(dst, uint32(p.PopsTotal))
		dst = append(dst, '}')
	case types.EventLevelComplete:
		dst = append(dst, `{"event_type":"lvl_complete","lvl":`...)
		dst = conv.AppendUint(dst, uint32(ev.Level))
		dst = append(dst, '}')
	case types.EventSessionEnd:
		dst = append(dst, `{"event_type":"session_end","win":`...)
		if ev.Won {
			dst = append(dst, "true"...)
		} else {
			dst = append(dst, "false"...)
		}
		dst = append(dst, '}')
	}
	return append(dst, '\n')
}

func appendIdentify(dst []byte, id string) []byte {
	dst = append(dst, `{"event_type":"identify","device_id":"`...)
	dst = append(dst, id...)
	return append(dst, '"', '}', '\n')
}

func appendStatus(dst []byte, st types.Status) []byte {
	dst = append(dst, `{"event_type":"status","state":"`...)
	dst = append(dst, st.State.String()...)
	dst = append(dst, `","lvl":`...)
	dst = conv.AppendUint(dst, uint32(st.Level))
	dst = append(dst, `,"pop":`...)
	dst = conv.AppendUint(dst, uint32(st.Pop))
	dst = append(dst, `,"lives":`...)
	dst = conv.AppendUint(dst, uint32(st.Lives))
	return append(dst, '}', '\n')
}
