package ballot

import (
	"errors"
	"fmt"
)

// Kind identifies which rule a ballot broke.
type Kind int

const (
	NotAnObject Kind = iota + 1
	NonIntegerValue
	NegativeValue
	DuplicateCandidate
	UnknownCandidate
	CapExceeded
	EmptyBallot
)

var (
	ErrNotAnObject        = errors.New("ballot is not a flat JSON object")
	ErrNonIntegerValue    = errors.New("allocation is not an integer")
	ErrNegativeValue      = errors.New("allocation is negative")
	ErrDuplicateCandidate = errors.New("candidate appears more than once")
	ErrUnknownCandidate   = errors.New("candidate is not on the ballot")
	ErrCapExceeded        = errors.New("allocations exceed the cap")
	ErrEmptyBallot        = errors.New("ballot has no allocation")
)

var sentinels = map[Kind]error{
	NotAnObject:        ErrNotAnObject,
	NonIntegerValue:    ErrNonIntegerValue,
	NegativeValue:      ErrNegativeValue,
	DuplicateCandidate: ErrDuplicateCandidate,
	UnknownCandidate:   ErrUnknownCandidate,
	CapExceeded:        ErrCapExceeded,
	EmptyBallot:        ErrEmptyBallot,
}

func (k Kind) String() string {
	switch k {
	case NotAnObject:
		return "NotAnObject"
	case NonIntegerValue:
		return "NonIntegerValue"
	case NegativeValue:
		return "NegativeValue"
	case DuplicateCandidate:
		return "DuplicateCandidate"
	case UnknownCandidate:
		return "UnknownCandidate"
	case CapExceeded:
		return "CapExceeded"
	case EmptyBallot:
		return "EmptyBallot"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ValidationError is returned by Validate. It is meant to be shown to the
// voter, so Msg never contains anything but the offending input.
type ValidationError struct {
	Kind Kind
	// Candidate is empty when the error is not tied to a single entry
	Candidate string
	Msg       string
}

func newError(kind Kind, candidate, format string, a ...interface{}) *ValidationError {
	return &ValidationError{
		Kind:      kind,
		Candidate: candidate,
		Msg:       fmt.Sprintf(format, a...),
	}
}

func (e *ValidationError) Error() string {
	if e.Candidate == "" {
		return fmt.Sprintf("ballot: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("ballot: %s: candidate %q: %s", e.Kind, e.Candidate, e.Msg)
}

// Unwrap returns the sentinel error of e.Kind, so that errors.Is(err, ErrCapExceeded) works.
func (e *ValidationError) Unwrap() error {
	return sentinels[e.Kind]
}
