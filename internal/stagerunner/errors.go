package stagerunner

import (
	"fmt"

	"panelcast/internal/services"
	"panelcast/internal/stage"
)

// ItemError is the stage-level failure built from the first failing item.
type ItemError struct {
	Stage   stage.Name
	Address stage.Address
	Err     error
	// Others counts further item failures in the same batch.
	Others int
}

func (e *ItemError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Stage, e.Address.Key(), e.Err)
	if e.Others > 0 {
		msg += fmt.Sprintf(" (+%d more item failures)", e.Others)
	}
	return msg
}

// Unwrap exposes both the stage failure marker and the item cause.
func (e *ItemError) Unwrap() []error {
	return []error{services.ErrStageFailure, e.Err}
}
