package rules

import (
	"errors"
	"fmt"

	"ticket-intake-go/internal/model"
)

var (
	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("invalid processing rule")

	// ErrInvalidActionValue is matched by every *InvalidActionValueError.
	ErrInvalidActionValue = errors.New("invalid action value")
)

// InvalidActionValueError reports an action whose value cannot be applied.
// It blocks the commit of the message being ingested.
type InvalidActionValueError struct {
	Type   model.ActionType
	Value  string
	Reason string
}

func (e *InvalidActionValueError) Error() string {
	return fmt.Sprintf("invalid value %q for action %s: %s", e.Value, e.Type, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidActionValue) match.
func (e *InvalidActionValueError) Is(target error) bool {
	return target == ErrInvalidActionValue
}
