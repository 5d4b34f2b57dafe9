package inventory

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// CompensationLog accumulates undo steps while a multi-target reservation
// progresses. Rollback runs them newest first.
type CompensationLog struct {
	steps []compensationStep
}

type compensationStep struct {
	name string
	fn   func(context.Context) error
}

// Add records the undo action for a step that just succeeded.
func (l *CompensationLog) Add(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	l.steps = append(l.steps, compensationStep{name: name, fn: fn})
}

func (l *CompensationLog) Len() int {
	return len(l.steps)
}

// Discard forgets every step once the whole operation succeeded.
func (l *CompensationLog) Discard() {
	l.steps = nil
}

// Rollback executes every step in reverse order. A failing step does not stop
// the remaining ones; all failures are combined in the returned error.
func (l *CompensationLog) Rollback(ctx context.Context) error {
	var errs error
	for i := len(l.steps) - 1; i >= 0; i-- {
		step := l.steps[i]
		if err := step.fn(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	l.steps = nil
	return errs
}
