package conflict

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy is matched by errors.Is for every unsupported
// strategy failure.
var ErrUnknownStrategy = errors.New("unknown conflict strategy")

// ResolveErrorCode categorizes resolution failures.
type ResolveErrorCode string

const (
	// ErrCodeUnknownStrategy indicates a strategy outside local/remote/merge.
	ErrCodeUnknownStrategy ResolveErrorCode = "UNKNOWN_STRATEGY"
)

// ResolveError reports a Resolve call that produced no record.
// Failed calls are not recorded in the resolution log.
type ResolveError struct {
	Code     ResolveErrorCode
	ID       string
	Strategy Strategy
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: record %q: strategy %q", e.Code, e.ID, e.Strategy)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *ResolveError) Unwrap() error {
	if e.Code == ErrCodeUnknownStrategy {
		return ErrUnknownStrategy
	}
	return nil
}

// IsUnknownStrategy returns true if err is an unsupported strategy failure.
// Uses errors.As to handle wrapped errors.
func IsUnknownStrategy(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnknownStrategy
	}
	return errors.Is(err, ErrUnknownStrategy)
}
