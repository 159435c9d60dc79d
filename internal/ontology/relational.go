package ontology

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/averros/semquery/internal/errors"
)

// RelationalBackend persists the concept graph in a SQLite database via GORM.
// The same database carries the append-only audit table.
type RelationalBackend struct {
	path string
	db   *gorm.DB
}

// NewRelationalBackend creates a relational backend for the given SQLite path.
// The connection is opened lazily via Open.
func NewRelationalBackend(path string) *RelationalBackend {
	return &RelationalBackend{path: path}
}

// Name identifies the backend in logs and storage info.
func (r *RelationalBackend) Name() string {
	return "relational"
}

// Path returns the SQLite database path.
func (r *RelationalBackend) Path() string {
	return r.path
}

// DB exposes the underlying connection for the audit recorder. Returns nil
// before Open succeeds.
func (r *RelationalBackend) DB() *gorm.DB {
	return r.db
}

// Open establishes the SQLite connection. It does not create the schema;
// EnsureSchema does that so that startup can detect a missing schema and
// fall back instead of silently creating an empty database.
func (r *RelationalBackend) Open() error {
	if r.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return dbError(fmt.Errorf("creating database directory: %w", err), "open")
	}

	db, err := gorm.Open(sqlite.Open(r.path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return dbError(fmt.Errorf("opening sqlite database: %w", err), "open")
	}
	r.db = db
	return nil
}

// HasSchema reports whether the concepts table exists.
func (r *RelationalBackend) HasSchema() bool {
	if r.db == nil {
		return false
	}
	return r.db.Migrator().HasTable(&ConceptRecord{})
}

// EnsureSchema creates or migrates the concepts and audit tables.
func (r *RelationalBackend) EnsureSchema() error {
	if r.db == nil {
		return dbError(fmt.Errorf("database connection is not initialized"), "migrate")
	}
	if err := r.db.AutoMigrate(&ConceptRecord{}, &AuditEntry{}); err != nil {
		return dbError(fmt.Errorf("migrating schema: %w", err), "migrate")
	}
	return nil
}

// Load reads all concept rows in insertion order.
func (r *RelationalBackend) Load() ([]Concept, error) {
	if r.db == nil {
		return nil, dbError(fmt.Errorf("database connection is not initialized"), "load")
	}

	var records []ConceptRecord
	if err := r.db.Order("created_at, id").Find(&records).Error; err != nil {
		return nil, dbError(fmt.Errorf("loading concepts: %w", err), "load")
	}

	concepts := make([]Concept, 0, len(records))
	for i := range records {
		concepts = append(concepts, records[i].toConcept())
	}
	return concepts, nil
}

// SaveAll rewrites the concepts table with the given set in one transaction,
// mirroring the flat-file backend's wholesale-rewrite semantics. The audit
// table is untouched.
func (r *RelationalBackend) SaveAll(concepts []Concept) error {
	if r.db == nil {
		return dbError(fmt.Errorf("database connection is not initialized"), "save")
	}

	start := time.Now()
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ConceptRecord{}).Error; err != nil {
			return fmt.Errorf("clearing concepts table: %w", err)
		}
		for i := range concepts {
			record := recordFromConcept(&concepts[i])
			// Spread CreatedAt so load order matches store order.
			record.CreatedAt = start.Add(time.Duration(i) * time.Microsecond)
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("inserting concept %q: %w", record.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "save")
	}
	return nil
}

// Close closes the underlying SQLite connection.
func (r *RelationalBackend) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return dbError(fmt.Errorf("getting sql connection: %w", err), "close")
	}
	r.db = nil
	return sqlDB.Close()
}

// dbError creates a properly categorized database error with context.
func dbError(err error, operation string) error {
	return errors.New(err).
		Component("ontology").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
