package planning

import (
	"errors"

	"github.com/kilianp07/twinplan/core/model"
)

// Run validates the input, builds the context and executes the strategy.
// Validation failures return a *model.ValidationError before any scheduling
// work. A schedule breaking window or capacity invariants is reported as a
// *model.InvariantError.
func Run(in Input, s Strategy, opts Options) (*Outcome, error) {
	if s == nil {
		return nil, errors.New("planning: nil strategy")
	}
	order, err := Priority(opts.Priority)
	if err != nil {
		return nil, err
	}
	c, err := NewContext(in)
	if err != nil {
		return nil, err
	}
	out, err := s.Run(c, order, opts)
	if err != nil {
		return nil, err
	}
	if err := out.Schedule.Verify(); err != nil {
		return nil, model.NewInvariantError("%s schedule: %v", out.Phase, err)
	}
	return out, nil
}
