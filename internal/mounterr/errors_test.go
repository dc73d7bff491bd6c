package mounterr

import (
	"errors"
	"testing"
)

func TestWrapAndIs(t *testing.T) {
	base := errors.New("solver timed out")
	err := Wrap(SolveError, base)

	if !Is(err, SolveError) {
		t.Error("expected Is(err, SolveError) to be true")
	}
	if Is(err, Fatal) {
		t.Error("expected Is(err, Fatal) to be false")
	}
	if !errors.Is(err, base) {
		t.Error("expected errors.Is to unwrap to the base error")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(Fatal, nil) != nil {
		t.Error("expected Wrap(kind, nil) to return nil")
	}
}

func TestSentinelKinds(t *testing.T) {
	if !Is(ErrUnknownVerb, Protocol) {
		t.Error("expected ErrUnknownVerb to be a Protocol error")
	}
	if !Is(ErrInvalidDirection, InvalidArgument) {
		t.Error("expected ErrInvalidDirection to be an InvalidArgument error")
	}
	if !Is(ErrAttachTimeout, HardwareUnavailable) {
		t.Error("expected ErrAttachTimeout to be a HardwareUnavailable error")
	}
}
