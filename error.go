package virusbegone

import (
	"fmt"
	"strings"

	"github.com/n2code/virusbegone/internal/failure"
)

type CommandError struct {
	message string
	cause   error
}

func (e *CommandError) Error() string {
	var msg strings.Builder
	fmt.Fprint(&msg, e.message)
	if e.cause != nil {
		fmt.Fprint(&msg, ": ", e.cause)
	}
	return msg.String()
}

func (e *CommandError) Unwrap() error {
	return e.cause
}

func newCommandError(message string, cause error) *CommandError {
	return &CommandError{message: message, cause: cause}
}

// Error kinds, match with errors.Is.
var (
	ErrIO         error = failure.IO
	ErrParse      error = failure.Parse
	ErrNotFound   error = failure.NotFound
	ErrPermission error = failure.Permission
	ErrInvariant  error = failure.Invariant
	ErrConflict   error = failure.Conflict
)
