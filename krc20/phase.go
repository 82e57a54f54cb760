package krc20

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Phase is a step of the commit/reveal protocol.
type Phase int

const (
	NotStarted Phase = iota
	CommitBuilt
	CommitSigned
	CommitBroadcast
	RevealBuilt
	RevealSigned
	RevealBroadcast
	Completed
)

var phaseNames = [...]string{
	NotStarted:      "not started",
	CommitBuilt:     "commit built",
	CommitSigned:    "commit signed",
	CommitBroadcast: "commit broadcast",
	RevealBuilt:     "reveal built",
	RevealSigned:    "reveal signed",
	RevealBroadcast: "reveal broadcast",
	Completed:       "completed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// transfer tracks one run through the state machine.
type transfer struct {
	phase Phase
	log   zerolog.Logger
}

// advance moves to the next phase. Besides the linear sequence, a resumed
// transfer may jump from NotStarted straight to RevealBuilt.
func (t *transfer) advance(to Phase) error {
	ok := to == t.phase+1 || (t.phase == NotStarted && to == RevealBuilt)
	if !ok || to > Completed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.phase, to)
	}
	t.log.Debug().Stringer("from", t.phase).Stringer("to", to).Msg("phase transition")
	t.phase = to
	return nil
}
