package conflict

import "github.com/roach88/tabsync/internal/record"

// Merge reconciles local and remote field by field. It returns a new
// record; neither input is modified.
//
// Business fields present only in remote are not carried over.
func Merge(local, remote record.Record) record.Record {
	result := make(record.Record, len(local))

	for k, lv := range local {
		if record.IsMetaKey(k) {
			continue
		}
		result[k] = lv

		rv, ok := remote[k]
		if !ok {
			continue
		}
		lf, lok := record.Number(lv)
		rf, rok := record.Number(rv)
		if lok && rok && rf > lf {
			// Keep remote's original value so its Go type survives.
			result[k] = rv
		}
	}

	for k, v := range metaWinner(local, remote).Meta() {
		result[k] = v
	}
	return result
}

// metaWinner picks the side whose metadata set survives a merge: remote
// when its "__modifiedAt" is numerically later, local otherwise. A local
// "__modifiedAt" that is missing or not a number counts as 0; ties keep
// local.
func metaWinner(local, remote record.Record) record.Record {
	rm, _ := remote.ModifiedAt()
	rf, ok := record.Number(rm)
	if !ok {
		return local
	}
	lm, _ := local.ModifiedAt()
	lf, _ := record.Number(lm) // 0 when missing or not a number
	if rf > lf {
		return remote
	}
	return local
}
