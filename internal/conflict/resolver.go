package conflict

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tabsync/internal/record"
)

// Resolution is one entry of the resolution log.
type Resolution struct {
	ID          string        `json:"id"`
	Strategy    Strategy      `json:"strategy"`
	Local       record.Record `json:"local"`
	Remote      record.Record `json:"remote"`
	Result      record.Record `json:"result"`
	ResolvedAt  int64         `json:"resolvedAt"`
	Fingerprint string        `json:"fingerprint,omitempty"`
}

// Resolver applies strategies and keeps the resolution log.
//
// The log only grows. Its length is the cumulative conflict count.
//
// Thread-safety: safe for concurrent use.
type Resolver struct {
	now func() time.Time

	mu  sync.Mutex
	log []Resolution
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithNow sets the wall clock used to stamp resolutions.
func WithNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a resolver with an empty log.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve reconciles local and remote under s and records the outcome.
//
// StrategyLocal and StrategyRemote return their input map itself. An
// unsupported strategy returns a *ResolveError and records nothing.
func (r *Resolver) Resolve(id string, local, remote record.Record, s Strategy) (record.Record, error) {
	var result record.Record
	switch s {
	case StrategyLocal:
		result = local
	case StrategyRemote:
		result = remote
	case StrategyMerge:
		result = Merge(local, remote)
	default:
		return nil, &ResolveError{Code: ErrCodeUnknownStrategy, ID: id, Strategy: s}
	}

	fp, err := record.Fingerprint(result)
	if err != nil {
		slog.Warn("resolved record has no fingerprint", "record_id", id, "error", err)
		fp = ""
	}

	entry := Resolution{
		ID:          id,
		Strategy:    s,
		Local:       local.Clone(),
		Remote:      remote.Clone(),
		Result:      result.Clone(),
		ResolvedAt:  r.now().UnixMilli(),
		Fingerprint: fp,
	}

	r.mu.Lock()
	r.log = append(r.log, entry)
	count := len(r.log)
	r.mu.Unlock()

	slog.Debug("conflict resolved",
		"record_id", id,
		"strategy", s,
		"fingerprint", fp,
		"conflict_count", count)

	return result, nil
}

// Log returns a copy of the resolution log, oldest first.
func (r *Resolver) Log() []Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Resolution, len(r.log))
	copy(out, r.log)
	return out
}

// Count returns the number of successful resolutions.
func (r *Resolver) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}
