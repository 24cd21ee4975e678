// Package store provides persistence for kaleido definitions.
package store

// Definition kinds.
const (
	KindDef    = "def"
	KindExtern = "extern"
)

// Definition is one persisted top-level unit. Source is the unit rendered
// back to source text; Seq orders definitions so that restoring them in
// ascending Seq order sees every dependency before its users.
type Definition struct {
	Name   string
	Kind   string
	Source string
	Seq    int64
}

// Store is the interface for definition persistence.
type Store interface {
	// Get retrieves a definition by name. Returns nil if not found.
	Get(name string) (*Definition, error)
	// Put stores a definition, overwriting one with the same name.
	Put(d Definition) error
	// Delete removes a definition and its history.
	Delete(name string) error
	// List returns every definition in ascending Seq order.
	List() ([]Definition, error)
	// Close releases resources.
	Close() error
}

// VersionEntry represents a single version of a persisted definition.
type VersionEntry struct {
	Version int
	Source  string
	Ts      string
}

// HistoryStore extends Store with version history queries.
type HistoryStore interface {
	GetHistory(name string, limit int) ([]VersionEntry, error)
}
