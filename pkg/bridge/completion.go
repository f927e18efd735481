package bridge

import "sync"

// Outcome is how an invocation resolved.
type Outcome int

const (
	OutcomeCompleted Outcome = iota + 1
	OutcomeAppError
	OutcomeResolveError
	OutcomeTimedOut
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAppError:
		return "app_error"
	case OutcomeResolveError:
		return "resolve_error"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "pending"
	}
}

type signal struct {
	outcome Outcome
	err     error
}

// completion merges every way an invocation can finish into one result.
// The first resolve wins; later calls are no-ops and report false.
type completion struct {
	once sync.Once
	ch   chan signal
}

func newCompletion() *completion {
	return &completion{ch: make(chan signal, 1)}
}

func (c *completion) resolve(outcome Outcome, err error) bool {
	won := false
	c.once.Do(func() {
		c.ch <- signal{outcome: outcome, err: err}
		won = true
	})
	return won
}

func (c *completion) done() <-chan signal { return c.ch }
