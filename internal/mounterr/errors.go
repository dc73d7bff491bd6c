// Package mounterr holds the error taxonomy shared by the controller
// and protocol layers.
package mounterr

import "errors"

// Kind classifies an error by how its caller should respond, per the
// propagation policy: recoverable conditions are swallowed at the loop
// boundary and logged, programmer errors propagate and abort the
// requesting task.
type Kind int

const (
	// Protocol marks a malformed or unknown client verb. Ignored with a
	// log entry; no reply is sent.
	Protocol Kind = iota
	// InvalidArgument marks a recognized verb with a bad value (bad rate
	// code, bad direction). Surfaced locally as a programmer error.
	InvalidArgument
	// HardwareUnavailable marks a motor attach failure or camera
	// failure. The controller degrades its mode and continues.
	HardwareUnavailable
	// SolveError marks a plate-solve failure this cycle. The previous
	// solved position is retained and the loop continues.
	SolveError
	// Unreachable marks a requested target that maps below the horizon.
	// The protocol layer returns "1" to the client.
	Unreachable
	// Fatal marks the position loop reaching an invalid state: logged,
	// state set to STOPPED, then re-raised.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "protocol"
	case InvalidArgument:
		return "invalid_argument"
	case HardwareUnavailable:
		return "hardware_unavailable"
	case SolveError:
		return "solve_error"
	case Unreachable:
		return "unreachable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-tagged error. Callers use errors.As to recover
// the Kind and decide whether to swallow, degrade, or abort.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a Error of the given kind wrapping msg.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Wrap builds an Error of the given kind wrapping an existing error.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err is a mounterr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

var (
	// ErrUnknownVerb is returned by the protocol dispatch table for an
	// unrecognized command verb.
	ErrUnknownVerb = New(Protocol, "unknown command verb")
	// ErrInvalidDirection is returned for an unrecognized nudge direction.
	ErrInvalidDirection = New(InvalidArgument, "invalid nudge direction")
	// ErrInvalidRate is returned for an unrecognized slew-rate code.
	ErrInvalidRate = New(InvalidArgument, "invalid slew rate code")
	// ErrAttachTimeout is returned when hardware fails to report
	// readiness within the attach deadline.
	ErrAttachTimeout = New(HardwareUnavailable, "hardware attach timed out")
)
