// audit.go records every concept mutation as an immutable audit entry
package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/averros/semquery/internal/errors"
)

// ErrAuditUnavailable is returned by audit queries when the relational
// backend is not active. Audit recording is a relational-only feature.
var ErrAuditUnavailable = errors.NewStd("audit log requires the relational storage backend")

// Mutation describes one concept change handed to the audit recorder.
type Mutation struct {
	ConceptID string
	Action    AuditAction
	Old       *Concept
	New       *Concept
	Actor     *ActorInfo
}

// AuditFilter narrows an audit query. Zero-value fields are not applied;
// present filters are conjunctive.
type AuditFilter struct {
	ConceptID string
	Action    string
	Limit     int
	Offset    int
}

// ActorCount is one row of the top-actors audit statistic.
type ActorCount struct {
	Actor string `json:"actor"`
	Count int64  `json:"count"`
}

// AuditStats summarizes the audit trail.
type AuditStats struct {
	TotalEntries   int64            `json:"totalEntries"`
	ActionCounts   map[string]int64 `json:"actionCounts"`
	RecentActivity int64            `json:"recentActivity"`
	TopActors      []ActorCount     `json:"topActors"`
}

// AuditRecorder receives every concept mutation. Record must never fail the
// originating mutation; implementations log and swallow their own errors.
type AuditRecorder interface {
	Record(ctx context.Context, m Mutation)
	Query(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
	Stats(ctx context.Context) (AuditStats, error)
}

// NoopRecorder is the audit recorder used while the flat-file backend is
// active: mutations are not audited and queries report unavailability.
type NoopRecorder struct{}

func (NoopRecorder) Record(ctx context.Context, m Mutation) {}

func (NoopRecorder) Query(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	return nil, ErrAuditUnavailable
}

func (NoopRecorder) Stats(ctx context.Context) (AuditStats, error) {
	return AuditStats{}, ErrAuditUnavailable
}

// defaultAuditLimit caps unbounded audit queries for the HTTP surface.
const defaultAuditLimit = 50

// recentActivityWindow is the lookback for the recent-activity statistic.
const recentActivityWindow = 7 * 24 * time.Hour

// topActorsLimit caps the top-actors statistic.
const topActorsLimit = 10

// SQLRecorder appends audit entries to the relational backend's audit table.
type SQLRecorder struct {
	db  *gorm.DB
	log *slog.Logger

	// onFailure is invoked when a write is swallowed, for metrics.
	onFailure func()
}

// NewSQLRecorder creates an audit recorder writing through the given
// connection. onFailure may be nil.
func NewSQLRecorder(db *gorm.DB, log *slog.Logger, onFailure func()) *SQLRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &SQLRecorder{db: db, log: log, onFailure: onFailure}
}

// Record inserts a new audit entry. Failures are logged and swallowed:
// audit logging is a side channel and must not abort the mutation.
func (r *SQLRecorder) Record(ctx context.Context, m Mutation) {
	defer func() {
		if rec := recover(); rec != nil {
			r.failed("audit write panicked", fmt.Errorf("%v", rec), m)
		}
	}()

	entry := AuditEntry{
		ConceptID: m.ConceptID,
		Action:    string(m.Action),
		OldData:   encodeSnapshot(m.Old),
		NewData:   encodeSnapshot(m.New),
		FieldDiff: diffConcepts(m.Old, m.New),
	}
	if m.Actor != nil {
		entry.ActorID = m.Actor.UserID
		entry.ActorName = m.Actor.Username
		entry.ActorIP = m.Actor.IPAddress
		entry.ActorUserAgent = m.Actor.UserAgent
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		r.failed("audit write failed", err, m)
	}
}

func (r *SQLRecorder) failed(msg string, err error, m Mutation) {
	r.log.Error(msg,
		"concept_id", m.ConceptID,
		"action", string(m.Action),
		"error", err)
	if r.onFailure != nil {
		r.onFailure()
	}
}

// Query returns audit entries most-recent-first, with conjunctive filters.
func (r *SQLRecorder) Query(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	q := r.db.WithContext(ctx).Model(&AuditEntry{})
	if f.ConceptID != "" {
		q = q.Where("concept_id = ?", f.ConceptID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", strings.ToUpper(f.Action))
	}

	var entries []AuditEntry
	if err := q.Order("id DESC").Limit(limit).Offset(f.Offset).Find(&entries).Error; err != nil {
		return nil, dbError(fmt.Errorf("querying audit log: %w", err), "audit_query")
	}
	return entries, nil
}

// Stats summarizes the audit trail: totals, per-action counts, activity in
// the last seven days and the ten most active actors.
func (r *SQLRecorder) Stats(ctx context.Context) (AuditStats, error) {
	stats := AuditStats{ActionCounts: make(map[string]int64)}
	db := r.db.WithContext(ctx)

	if err := db.Model(&AuditEntry{}).Count(&stats.TotalEntries).Error; err != nil {
		return AuditStats{}, dbError(fmt.Errorf("counting audit entries: %w", err), "audit_stats")
	}

	var actionRows []struct {
		Action string
		Count  int64
	}
	if err := db.Model(&AuditEntry{}).
		Select("action, COUNT(*) as count").
		Group("action").
		Scan(&actionRows).Error; err != nil {
		return AuditStats{}, dbError(fmt.Errorf("counting audit actions: %w", err), "audit_stats")
	}
	for _, row := range actionRows {
		stats.ActionCounts[row.Action] = row.Count
	}

	cutoff := time.Now().Add(-recentActivityWindow)
	if err := db.Model(&AuditEntry{}).
		Where("created_at >= ?", cutoff).
		Count(&stats.RecentActivity).Error; err != nil {
		return AuditStats{}, dbError(fmt.Errorf("counting recent audit activity: %w", err), "audit_stats")
	}

	var actorRows []struct {
		ActorID   string
		ActorName string
		Count     int64
	}
	if err := db.Model(&AuditEntry{}).
		Select("actor_id, MAX(actor_name) as actor_name, COUNT(*) as count").
		Group("actor_id").
		Order("count DESC").
		Limit(topActorsLimit).
		Scan(&actorRows).Error; err != nil {
		return AuditStats{}, dbError(fmt.Errorf("ranking audit actors: %w", err), "audit_stats")
	}
	for _, row := range actorRows {
		actor := row.ActorID
		if actor == "" {
			actor = row.ActorName
		}
		stats.TopActors = append(stats.TopActors, ActorCount{Actor: actor, Count: row.Count})
	}

	return stats, nil
}

// auditedFields are the semantically significant concept fields compared by
// the diff, in render order.
var auditedFields = []string{"label", "synonyms", "broader", "narrower", "related", "verses"}

// diffConcepts renders a human-readable field-level diff between two
// snapshots. Fields that did not change are omitted; a pure CREATE or DELETE
// yields an empty diff.
func diffConcepts(oldConcept, newConcept *Concept) string {
	if oldConcept == nil || newConcept == nil {
		return ""
	}

	oldFields := conceptFields(oldConcept)
	newFields := conceptFields(newConcept)

	var changes []string
	for _, field := range auditedFields {
		if oldFields[field] != newFields[field] {
			changes = append(changes, fmt.Sprintf("%s: %s → %s", field, oldFields[field], newFields[field]))
		}
	}
	return strings.Join(changes, "; ")
}

func conceptFields(c *Concept) map[string]string {
	return map[string]string{
		"label":    c.Label,
		"synonyms": renderList(c.Synonyms),
		"broader":  renderList(c.Broader),
		"narrower": renderList(c.Narrower),
		"related":  renderList(c.Related),
		"verses":   renderList(c.Verses),
	}
}

func renderList(values []string) string {
	return "[" + strings.Join(values, ", ") + "]"
}

func encodeSnapshot(c *Concept) string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}
