package resolve

import (
	"errors"
	"fmt"

	"github.com/tinygems/tinygems/internal/provider"
)

var (
	// ErrInsufficientData is returned by Finalize when no platform is connected.
	ErrInsufficientData = errors.New("insufficient data: no platforms connected")

	// ErrSessionClosed is returned for operations on an abandoned or finalized session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrInvalidTransition is returned when an operation is not allowed in
	// the platform's current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownPlatform is returned for platforms without a configured adapter.
	ErrUnknownPlatform = errors.New("platform not configured")

	// ErrUnknownCandidate is returned when connecting a candidate the
	// platform's last search did not produce.
	ErrUnknownCandidate = errors.New("candidate not found")

	// ErrEmptySeed is returned when starting a session from blank input.
	ErrEmptySeed = errors.New("seed input is empty")

	// ErrEmptyTarget is returned by Connect when neither a candidate ID nor
	// a URL is given.
	ErrEmptyTarget = errors.New("connect requires a candidate id or a url")
)

// StorageError wraps a persistence failure during Finalize. The session is
// left untouched so Finalize can be retried.
type StorageError struct {
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("saving artist profile: %v", e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

func transitionError(op string, p provider.Platform, from Status) error {
	return fmt.Errorf("%w: cannot %s %s while %s", ErrInvalidTransition, op, p, from)
}

func unknownPlatform(p provider.Platform) error {
	return fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
}
