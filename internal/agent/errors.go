package agent

import "errors"

// Configuration errors abort the session before any turn is processed.
var (
	ErrConfiguration  = errors.New("agent: configuration error")
	ErrNoOracle       = errors.New("agent: no utility oracle")
	ErrNoClock        = errors.New("agent: no negotiation clock")
	ErrInvalidUtility = errors.New("agent: utility outside [0,1]")
)

// Protocol errors are logic errors in the session host. The turn that hits
// one emits no action.
var (
	ErrProtocolViolation = errors.New("agent: protocol violation")
	ErrTurnInProgress    = errors.New("agent: turn already in progress")
	ErrNotStarted        = errors.New("agent: session not started")
	ErrSessionEnded      = errors.New("agent: session ended")
)
