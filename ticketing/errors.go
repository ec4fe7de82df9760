/*
errors.go - Error taxonomy for the ticketing engine

PURPOSE:
  Every failure the engine can report has a sentinel, so callers can tell
  "this bundle was already handed out" apart from a database outage.
  Several of these are ordinary races between two operators, not bugs.

ERROR CATEGORIES:
  1. Input errors    - InvalidRange, OutOfRange, InvalidInput
  2. Conflict errors - Overlap, NotAvailable, AlreadySettled,
                       RemainderAlreadyConsumed, IllegalTransition, Duplicate
  3. Lookup errors   - NotFound
  4. Scope errors    - ArchivedScope

USAGE:
    if errors.Is(err, ticketing.ErrNotAvailable) {
        // someone else distributed the bundle first
    }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP statuses
*/
package ticketing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a serial range has start > end.
	ErrInvalidRange = errors.New("invalid serial range")

	// ErrOverlap is returned when a new bundle shares serials with an
	// existing non-cancelled bundle of the same color and scope.
	ErrOverlap = errors.New("serial range overlaps existing stock")

	// ErrNotAvailable is returned when distributing a bundle that is not
	// Available, including losing a race against a concurrent distribute.
	ErrNotAvailable = errors.New("bundle not available")

	// ErrAlreadySettled is returned when cancelling, editing or settling a
	// distribution that is no longer Distributed.
	ErrAlreadySettled = errors.New("distribution already settled or cancelled")

	// ErrOutOfRange is returned when the returned serial lies outside the
	// distributed bundle.
	ErrOutOfRange = errors.New("returned serial out of range")

	// ErrRemainderAlreadyConsumed blocks reversal when the remainder bundle
	// created by the settlement has since been distributed or changed.
	ErrRemainderAlreadyConsumed = errors.New("remainder bundle already consumed")

	// ErrNotFound is returned when a staff, rate, bundle, distribution,
	// scope or staff settlement reference does not exist.
	ErrNotFound = errors.New("not found")

	// ErrArchivedScope is returned when writing to a scope that is not active.
	ErrArchivedScope = errors.New("scope is archived")

	// ErrIllegalTransition is returned when a status change is not an edge
	// of the lifecycle state machine.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrStaleStatus is returned by the store when a compare-and-swap
	// status update matched zero rows.
	ErrStaleStatus = errors.New("status changed concurrently")

	// ErrDuplicate is returned when a unique name is already taken.
	ErrDuplicate = errors.New("duplicate")

	// ErrInvalidInput is returned for malformed input (bad price, empty
	// color, unparseable CSV field).
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing reference.
type NotFoundError struct {
	Kind string // "staff", "rate", "bundle", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// OverlapError names the bundle that already holds some of the serials.
type OverlapError struct {
	Color      string
	Start, End int64
	Existing   BundleID
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("serials %d-%d (%s) overlap bundle %s", e.Start, e.End, e.Color, e.Existing)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// OutOfRangeError reports the legal bounds for a returned serial.
type OutOfRangeError struct {
	Returned int64
	Min, Max int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("returned serial %d outside [%d, %d]", e.Returned, e.Min, e.Max)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// TransitionError reports an illegal state machine edge.
type TransitionError struct {
	Kind     string
	From, To string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// LineError locates a failure inside a bulk import.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error reflects current state rather than
// bad input; retrying after a refresh may succeed.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrNotAvailable) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrRemainderAlreadyConsumed) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrStaleStatus) ||
		errors.Is(err, ErrDuplicate)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrInvalidInput)
}
