// model.go defines the concept graph data model and its relational mapping
package ontology

import (
	"encoding/json"
	"time"
)

// Concept is a node in the ontology graph representing one searchable idea.
// Edge lists may reference concept ids that do not exist in the store; lookups
// treat missing targets as absent.
type Concept struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Synonyms []string `json:"synonyms,omitempty"`
	Broader  []string `json:"broader,omitempty"`
	Narrower []string `json:"narrower,omitempty"`
	Related  []string `json:"related,omitempty"`
	Verses   []string `json:"verses,omitempty"`
}

// Clone returns a deep copy so callers can't mutate stored slices.
func (c Concept) Clone() Concept {
	clone := c
	clone.Synonyms = append([]string(nil), c.Synonyms...)
	clone.Broader = append([]string(nil), c.Broader...)
	clone.Narrower = append([]string(nil), c.Narrower...)
	clone.Related = append([]string(nil), c.Related...)
	clone.Verses = append([]string(nil), c.Verses...)
	return clone
}

// ActorInfo identifies who performed a mutation, for audit attribution.
type ActorInfo struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

// AuditAction is the kind of concept mutation recorded in the audit trail.
type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

// ConceptRecord is the relational form of a Concept. Array fields are stored
// JSON-encoded, one row per concept.
type ConceptRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Label     string `gorm:"index:idx_concepts_label"`
	Synonyms  string `gorm:"type:text"`
	Broader   string `gorm:"type:text"`
	Narrower  string `gorm:"type:text"`
	Related   string `gorm:"type:text"`
	Verses    string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the GORM default table name
func (ConceptRecord) TableName() string {
	return "concepts"
}

// AuditEntry is one immutable record of a concept mutation. Rows are append
// only; nothing in the application updates or deletes them.
type AuditEntry struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"sequenceId"`
	ConceptID      string    `gorm:"index:idx_audit_concept;size:64" json:"conceptId"`
	Action         string    `gorm:"index:idx_audit_action;size:16" json:"action"`
	ActorID        string    `gorm:"index:idx_audit_actor;size:64" json:"actorId"`
	ActorName      string    `json:"actorName"`
	ActorIP        string    `json:"actorIp"`
	ActorUserAgent string    `json:"actorUserAgent"`
	OldData        string    `gorm:"type:text" json:"oldData,omitempty"`
	NewData        string    `gorm:"type:text" json:"newData,omitempty"`
	FieldDiff      string    `gorm:"type:text" json:"fieldDiff,omitempty"`
	CreatedAt      time.Time `gorm:"index:idx_audit_created" json:"timestamp"`
}

// TableName overrides the GORM default table name
func (AuditEntry) TableName() string {
	return "concept_audit_logs"
}

// recordFromConcept converts a Concept into its relational form.
func recordFromConcept(c *Concept) ConceptRecord {
	return ConceptRecord{
		ID:       c.ID,
		Label:    c.Label,
		Synonyms: encodeStrings(c.Synonyms),
		Broader:  encodeStrings(c.Broader),
		Narrower: encodeStrings(c.Narrower),
		Related:  encodeStrings(c.Related),
		Verses:   encodeStrings(c.Verses),
	}
}

// toConcept converts a relational row back into a Concept.
func (r *ConceptRecord) toConcept() Concept {
	return Concept{
		ID:       r.ID,
		Label:    r.Label,
		Synonyms: decodeStrings(r.Synonyms),
		Broader:  decodeStrings(r.Broader),
		Narrower: decodeStrings(r.Narrower),
		Related:  decodeStrings(r.Related),
		Verses:   decodeStrings(r.Verses),
	}
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(data string) []string {
	if data == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}
