package scheduling

import "fmt"

// Terminal reports whether no further transition is permitted out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	case StatusConfirmed:
		return false
	}
	return false
}

// ValidateTransition enforces the one-directional lifecycle:
// confirmed -> cancelled | completed | no_show, nothing out of a terminal
// state. Attempting a transition out of a terminal state is an explicit
// state-conflict error, not a silent no-op.
func ValidateTransition(from, to Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, from)
	}
	switch from {
	case StatusConfirmed:
		switch to {
		case StatusCancelled, StatusCompleted, StatusNoShow:
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
