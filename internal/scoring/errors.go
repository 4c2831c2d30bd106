package scoring

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/verte-zerg/quiver/internal/store"
)

var (
	// ErrNotFound is returned when a session or sight setting id is unknown.
	ErrNotFound = store.ErrNotFound
	// ErrConflict is returned when a generated id already exists.
	ErrConflict = store.ErrConflict
	// ErrUnavailable wraps storage failures and timeouts. Callers may retry.
	ErrUnavailable = store.ErrUnavailable

	// ErrOutOfRange is returned for an end or arrow index outside the session.
	ErrOutOfRange = errors.New("position out of range")
	// ErrSessionLocked is returned when mutating a completed session.
	ErrSessionLocked = errors.New("session is completed")
	// ErrIncompleteSession is matched by *IncompleteSessionError.
	ErrIncompleteSession = errors.New("session has unscored arrows")
	// ErrInvalidArgument is returned for nonsensical construction parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSessionFull is returned by RecordArrow when no slot is unset.
	ErrSessionFull = errors.New("every arrow is already scored")
)

// IncompleteSessionError lists the ends that still have unset slots.
type IncompleteSessionError struct {
	SessionID string
	// Ends are zero-based end indexes.
	Ends []int
}

func (e *IncompleteSessionError) Error() string {
	parts := make([]string, len(e.Ends))
	for i, end := range e.Ends {
		parts[i] = strconv.Itoa(end + 1)
	}
	return fmt.Sprintf("complete session %s: %v (ends %s)", e.SessionID, ErrIncompleteSession, strings.Join(parts, ", "))
}

// Is lets errors.Is match ErrIncompleteSession.
func (e *IncompleteSessionError) Is(target error) bool {
	return target == ErrIncompleteSession
}
