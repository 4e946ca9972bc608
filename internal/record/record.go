package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Metadata keys carried by every versioned record.
const (
	MetaPrefix    = "__"
	KeyVersion    = "__version"
	KeyModifiedAt = "__modifiedAt"
)

// Record is a versioned business record.
type Record map[string]any

// IsMetaKey reports whether key belongs to the metadata set.
func IsMetaKey(key string) bool {
	return strings.HasPrefix(key, MetaPrefix)
}

// Version returns the raw "__version" value and whether it is present.
func (r Record) Version() (any, bool) {
	v, ok := r[KeyVersion]
	return v, ok
}

// ModifiedAt returns the raw "__modifiedAt" value and whether it is present.
func (r Record) ModifiedAt() (any, bool) {
	v, ok := r[KeyModifiedAt]
	return v, ok
}

// Clone returns a shallow copy. Nested values are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Meta returns the metadata subset of the record.
func (r Record) Meta() Record {
	out := Record{}
	for k, v := range r {
		if IsMetaKey(k) {
			out[k] = v
		}
	}
	return out
}

// Decode parses a JSON object into a Record. Numbers are kept as
// json.Number so integers survive a round trip unchanged.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var r Record
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("decode record: not a JSON object")
	}
	return r, nil
}

// Number converts any Go or JSON numeric value to float64.
// Returns false for non-numeric values.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// SameValue compares two metadata values the way loosely-typed clients do:
// numbers compare by value regardless of their Go type, everything else by
// deep equality. Two absent values are the same.
func SameValue(a any, aok bool, b any, bok bool) bool {
	if !aok || !bok {
		return aok == bok
	}
	af, aNum := Number(a)
	bf, bNum := Number(b)
	if aNum && bNum {
		// NaN is the same as NaN so a record always matches itself.
		if math.IsNaN(af) || math.IsNaN(bf) {
			return math.IsNaN(af) && math.IsNaN(bf)
		}
		return af == bf
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(a, b)
}
