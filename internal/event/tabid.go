package event

import "github.com/google/uuid"

// TabIDGenerator produces the identity a tab stamps as Source.
type TabIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable tab ids of the form "tab-<uuidv7>".
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new tab id. Panics if the system entropy source fails.
func (UUIDv7Generator) Generate() string {
	return "tab-" + uuid.Must(uuid.NewV7()).String()
}

// StaticTabID always returns the same id. Used when the id is configured.
type StaticTabID string

// Generate returns the configured id.
func (s StaticTabID) Generate() string {
	return string(s)
}
