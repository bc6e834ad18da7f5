package domain

import (
	"errors"
	"fmt"
)

// ErrPrecondition is the parent of every guard failure caused by stale
// state. Clients observing one simply drop the attempt.
var ErrPrecondition = errors.New("precondition failed")

// Guard failures
var (
	ErrWrongStatus   = fmt.Errorf("%w: room is not in the required status", ErrPrecondition)
	ErrNotDriver     = fmt.Errorf("%w: caller does not drive the clock", ErrPrecondition)
	ErrAlreadyLogged = fmt.Errorf("%w: results already logged", ErrPrecondition)
)

// Code validation errors
var (
	ErrCodeLength     = errors.New("code has the wrong number of digits")
	ErrCodeNotDigits  = errors.New("code must contain only digits")
	ErrCodeDuplicates = errors.New("code digits must be unique")
)

// Room errors
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomClosed     = errors.New("room is closed")
	ErrRoomExpired    = errors.New("room expired")
	ErrInvalidRoomID  = errors.New("room id is required")
	ErrNotSeated      = errors.New("caller does not occupy a seat")
	ErrNotYourTurn    = errors.New("it is not your turn")
	ErrNotAdmin       = errors.New("only player 1 can perform this action")
	ErrSecretLocked   = errors.New("secret already set for this match")
	ErrMissingSecrets = errors.New("both secrets must be set")
)

// IsPrecondition reports whether err is a stale-state guard failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}
