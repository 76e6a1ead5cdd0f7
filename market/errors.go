package market

import (
	"errors"

	"golang.org/x/xerrors"
)

// The two rejection classes callers can act on. Validation means the input
// was malformed; precondition means the input was fine but the state does
// not admit the action. Both abort before any mutation.
var (
	ErrValidation   = errors.New("validation failed")
	ErrPrecondition = errors.New("precondition failed")
)

func validationErr(format string, args ...interface{}) error {
	return xerrors.Errorf(format+": %w", append(args, ErrValidation)...)
}

func preconditionErr(format string, args ...interface{}) error {
	return xerrors.Errorf(format+": %w", append(args, ErrPrecondition)...)
}
