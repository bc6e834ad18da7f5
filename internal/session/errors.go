package session

import (
	"context"
	"errors"

	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/repository"
)

// Notice and error codes shown to the player.
const (
	CodeInvalidCode      = "INVALID_CODE"
	CodeNotYourTurn      = "NOT_YOUR_TURN"
	CodeNotSeated        = "NOT_SEATED"
	CodeNotAdmin         = "NOT_ADMIN"
	CodeSecretLocked     = "SECRET_LOCKED"
	CodeMissingSecrets   = "MISSING_SECRETS"
	CodeRoomClosed       = "ROOM_CLOSED"
	CodeRoomNotFound     = "ROOM_NOT_FOUND"
	CodeInvalidRoomID    = "INVALID_ROOM_ID"
	CodeNotInRoom        = "NOT_IN_ROOM"
	CodeContention       = "CONTENTION"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeStoreError       = "STORE_ERROR"
)

// Reasons passed to Sink.Closed.
const (
	ReasonClosed  = "closed"
	ReasonExpired = "expired"
	ReasonLeft    = "left"
)

// ErrNotInRoom is returned by actions issued before the session joined.
var ErrNotInRoom = errors.New("session has not joined a room")

// ErrorCode maps an error onto the code a client shows for it.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrCodeLength),
		errors.Is(err, domain.ErrCodeNotDigits),
		errors.Is(err, domain.ErrCodeDuplicates):
		return CodeInvalidCode
	case errors.Is(err, domain.ErrNotYourTurn):
		return CodeNotYourTurn
	case errors.Is(err, domain.ErrNotSeated):
		return CodeNotSeated
	case errors.Is(err, domain.ErrNotAdmin):
		return CodeNotAdmin
	case errors.Is(err, domain.ErrSecretLocked):
		return CodeSecretLocked
	case errors.Is(err, domain.ErrMissingSecrets):
		return CodeMissingSecrets
	case errors.Is(err, domain.ErrRoomClosed):
		return CodeRoomClosed
	case errors.Is(err, domain.ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, domain.ErrInvalidRoomID):
		return CodeInvalidRoomID
	case errors.Is(err, ErrNotInRoom):
		return CodeNotInRoom
	case repository.IsContention(err):
		return CodeContention
	}
	return CodeStoreError
}

// ignorable errors are stale-state guard failures and shutdown noise.
func ignorable(err error) bool {
	return err == nil ||
		domain.IsPrecondition(err) ||
		errors.Is(err, context.Canceled)
}
