package conflict

import "github.com/roach88/tabsync/internal/record"

// Detect reports whether local and remote are conflicting copies.
// True iff both "__version" and "__modifiedAt" differ. A nil side never
// conflicts.
func Detect(local, remote record.Record) bool {
	if local == nil || remote == nil {
		return false
	}

	lv, lvok := local.Version()
	rv, rvok := remote.Version()
	if record.SameValue(lv, lvok, rv, rvok) {
		return false
	}

	lm, lmok := local.ModifiedAt()
	rm, rmok := remote.ModifiedAt()
	return !record.SameValue(lm, lmok, rm, rmok)
}
