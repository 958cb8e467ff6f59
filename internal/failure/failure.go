package failure

import (
	"fmt"
	"strings"
)

// Kind classifies what went wrong. A Kind is itself an error so that callers can match with errors.Is.
type Kind int

const (
	IO         Kind = iota + 1 //file unreadable, unmovable or not writable
	Parse                      //malformed signature document or quarantine log
	NotFound                   //target absent from the quarantine log or directory
	Permission                 //lockdown or unlock of a quarantined file failed
	Invariant                  //quarantine log and quarantine directory disagree
	Conflict                   //operation would overwrite something it does not own
)

func (k Kind) Error() string {
	switch k {
	case IO:
		return "I/O error"
	case Parse:
		return "parse error"
	case NotFound:
		return "not found"
	case Permission:
		return "permission error"
	case Invariant:
		return "invariant violation"
	case Conflict:
		return "conflict"
	}
	return "unknown error"
}

// Error carries the context of a failed operation: what was attempted, on which path, and why it failed.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	var msg strings.Builder
	msg.WriteString(e.Op)
	if e.Path != "" {
		fmt.Fprintf(&msg, " %s", e.Path)
	}
	fmt.Fprintf(&msg, " (%s)", e.Kind)
	if e.Err != nil {
		fmt.Fprint(&msg, ": ", e.Err)
	}
	return msg.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == e.Kind
}

func New(kind Kind, op string, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// Problems collects errors of independent units of work which must not abort the whole.
type Problems []error

func (p Problems) Error() string {
	switch len(p) {
	case 0:
		return "no problems"
	case 1:
		return p[0].Error()
	}
	lines := make([]string, 0, len(p))
	for _, err := range p {
		lines = append(lines, err.Error())
	}
	return fmt.Sprintf("%d problems:\n%s", len(p), strings.Join(lines, "\n"))
}

func (p Problems) Unwrap() []error {
	return p
}

// OrNil returns nil for an empty collection so that callers can return it as error directly.
func (p Problems) OrNil() error {
	if len(p) == 0 {
		return nil
	}
	return p
}
