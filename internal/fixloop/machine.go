package fixloop

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/JonMunkholm/manifestcheck/internal/logging"
)

// Loop states.
const (
	StateIdle       = "idle"
	StateScoring    = "scoring"
	StateCorrecting = "correcting"
	StateDone       = "done"
	StateExhausted  = "exhausted"
	StateCancelled  = "cancelled"
)

// Loop events. The loop fires them from Run; callbacks only observe.
const (
	eventStart   = "start"
	eventCorrect = "correct"
	eventRescore = "rescore"
	eventSucceed = "succeed"
	eventExhaust = "exhaust"
	eventCancel  = "cancel"
)

func newMachine() *fsm.FSM {
	return fsm.NewFSM(StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateScoring},
			{Name: eventCorrect, Src: []string{StateScoring}, Dst: StateCorrecting},
			{Name: eventRescore, Src: []string{StateCorrecting}, Dst: StateScoring},
			{Name: eventSucceed, Src: []string{StateScoring}, Dst: StateDone},
			{Name: eventExhaust, Src: []string{StateScoring, StateCorrecting}, Dst: StateExhausted},
			{Name: eventCancel, Src: []string{StateIdle, StateScoring, StateCorrecting}, Dst: StateCancelled},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				logging.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug, "fix loop transition",
					slog.String("event", e.Event),
					slog.String("from", e.Src),
					slog.String("to", e.Dst))
			},
		},
	)
}

// terminal reports whether no further events apply in state.
func terminal(state string) bool {
	switch state {
	case StateDone, StateExhausted, StateCancelled:
		return true
	}
	return false
}
