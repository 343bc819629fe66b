package manager

import "fmt"

// CapacityError is returned when the configured game limit is reached.
type CapacityError struct {
	Max int
}

func (e *CapacityError) Error() string {
	return "Max game limit reached. Try again after a game has finished."
}

// ConflictError is returned when a participant already has a game in
// progress.
type ConflictError struct {
	Player string
	Caller bool // true when the conflicting participant is the caller
}

func (e *ConflictError) Error() string {
	if e.Caller {
		return "You already have a game in progress."
	}
	return fmt.Sprintf("@%s already has a game in progress.", e.Player)
}

// ValidationError is returned for a malformed opponent specification.
type ValidationError struct {
	Spec string
}

func (e *ValidationError) Error() string {
	return "You must challenge gnubg or an existing slack user (e.g. @austin)"
}

// ForbiddenReason distinguishes the two causes of a ForbiddenError.
type ForbiddenReason int

const (
	// NoGame means the caller has no game in progress.
	NoGame ForbiddenReason = iota
	// WrongTurn means the command requires it to be the caller's turn.
	WrongTurn
)

// ForbiddenError is returned when a command is not permitted for the
// caller: either they have no active game, or it is not their turn.
type ForbiddenError struct {
	Reason ForbiddenReason
}

func (e *ForbiddenError) Error() string {
	switch e.Reason {
	case WrongTurn:
		return "It's not your turn!"
	default:
		return "You do not have a game in progress."
	}
}
