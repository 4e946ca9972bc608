package conflict

import "fmt"

// Strategy selects how Resolve reconciles two copies.
type Strategy string

const (
	// StrategyLocal keeps the local copy unchanged.
	StrategyLocal Strategy = "local"
	// StrategyRemote takes the remote copy unchanged.
	StrategyRemote Strategy = "remote"
	// StrategyMerge combines both copies with Merge.
	StrategyMerge Strategy = "merge"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{StrategyLocal, StrategyRemote, StrategyMerge}

// Valid reports whether s is a supported strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLocal, StrategyRemote, StrategyMerge:
		return true
	}
	return false
}

// ParseStrategy converts a user-supplied name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}
