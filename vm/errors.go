package vm

import (
	"errors"
	"fmt"
)

// Execution errors returned by instructions and the engine.
var (
	// ErrIllegalOperation means the operation is undefined for its inputs
	// (division by zero, overflow, a non-finite float). The inputs have been
	// consumed. Recoverable.
	ErrIllegalOperation = errors.New("illegal operation")

	// ErrInsufficientInputs means a stack held too few items. Nothing was
	// changed. Recoverable.
	ErrInsufficientInputs = errors.New("insufficient inputs")

	// ErrOutOfMemory means the engine grew past its configured ceiling. Fatal
	// for the current run.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrInvalidOpcode means a Code node refers to an instruction that is not
	// registered. Fatal for the current run.
	ErrInvalidOpcode = errors.New("invalid opcode")
)

// IsRecoverable reports whether err is absorbed by the engine instead of
// ending the run.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrIllegalOperation) || errors.Is(err, ErrInsufficientInputs)
}

// ParseError describes malformed program text.
type ParseError struct {
	Pos      Position
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: expected %s, found %s", e.Pos.Line, e.Pos.Column, e.Expected, e.Found)
}
