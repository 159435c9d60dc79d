// backend.go defines the persistence strategy interface for the concept graph
package ontology

// Backend is a durability target for the concept set. The store keeps the
// working copy in memory; backends only load at startup and rewrite the full
// set on mutation, switch and sync.
type Backend interface {
	// Name identifies the backend in logs and storage info.
	Name() string
	// Load reads the full persisted concept set. A missing durable form is
	// not an error; it loads as an empty set.
	Load() ([]Concept, error)
	// SaveAll rewrites the durable form with the given concept set.
	SaveAll(concepts []Concept) error
	// Close releases backend resources.
	Close() error
}

// StorageInfo describes the active persistence configuration for the
// storage management surface.
type StorageInfo struct {
	StorageType  string `json:"storageType"`
	ConceptCount int    `json:"conceptCount"`
	Location     string `json:"location"`
}
