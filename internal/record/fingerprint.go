package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord separates record fingerprints from any other hash use.
const DomainRecord = "tabsync/record/v1"

// Fingerprint returns a content hash of the record:
// SHA256(domain + 0x00 + canonical JSON).
// Two records with equal canonical forms share a fingerprint regardless of
// map order or numeric Go type.
func Fingerprint(r Record) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainRecord))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
