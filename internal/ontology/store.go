// Package ontology owns the concept graph: an in-memory working copy with
// indexed lookups, dual persistence backends and an audited mutation path.
package ontology

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/errors"
)

// Structural errors returned by the store's CRUD surface. Callers map these
// to response codes distinct from generic persistence failures.
var (
	ErrConceptNotFound  = errors.NewStd("concept not found")
	ErrDuplicateConcept = errors.NewStd("concept id already exists")
)

// Store holds the full concept set in memory as the working copy. The active
// backend is the durability target, not the read path; reads always come
// from memory. Writers serialize against each other and against backend
// switches; readers never observe a partially applied write.
type Store struct {
	mu sync.RWMutex

	concepts []Concept
	index    map[string]int // lowercase id/label/synonym -> first matching concept, store order
	ids      map[string]int // lowercase id -> concept, for uniqueness and targeting

	mode    string
	backend Backend
	flat    *FlatFileBackend
	rel     *RelationalBackend
	audit   AuditRecorder

	auditFailureHook func()
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithAuditFailureHook registers a callback invoked whenever an audit write
// is swallowed, so the caller can count it.
func WithAuditFailureHook(hook func()) Option {
	return func(s *Store) {
		s.auditFailureHook = hook
	}
}

// New constructs a store from the configured backends and loads the working
// copy. When the relational backend is requested but its schema is missing
// or unreadable, the store downgrades itself to the flat-file backend and
// logs the fallback instead of failing.
func New(settings *conf.Settings, opts ...Option) (*Store, error) {
	s := &Store{
		flat: NewFlatFileBackend(settings.Ontology.FlatFilePath),
		rel:  NewRelationalBackend(settings.Ontology.SQLitePath),
		mode: settings.Ontology.Storage,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch s.mode {
	case conf.StorageFlatFile, conf.StorageRelational:
	default:
		// A nil backend would panic on the first mutation; settings built
		// without conf.ValidateSettings must still fail loudly here.
		return nil, validationError(fmt.Sprintf("unknown storage mode %q", s.mode))
	}

	if s.mode == conf.StorageRelational {
		if reason := s.tryActivateRelational(); reason != "" {
			getLogger().Warn("relational storage unavailable, falling back to flat-file",
				"reason", reason,
				"sqlite_path", settings.Ontology.SQLitePath)
			s.mode = conf.StorageFlatFile
		}
	}

	if s.mode == conf.StorageFlatFile {
		concepts, err := s.flat.Load()
		if err != nil {
			return nil, err
		}
		s.concepts = concepts
		s.backend = s.flat
		s.audit = NoopRecorder{}
	}

	s.rebuildIndexes()
	getLogger().Info("concept store initialized",
		"storage", s.mode,
		"concepts", len(s.concepts))
	return s, nil
}

// tryActivateRelational attempts to bring up the relational backend as the
// active one. It returns a non-empty reason on failure.
func (s *Store) tryActivateRelational() string {
	if err := s.rel.Open(); err != nil {
		return fmt.Sprintf("open failed: %v", err)
	}
	if !s.rel.HasSchema() {
		return "concepts table does not exist"
	}
	concepts, err := s.rel.Load()
	if err != nil {
		return fmt.Sprintf("load failed: %v", err)
	}

	s.concepts = concepts
	s.backend = s.rel
	s.audit = NewSQLRecorder(s.rel.DB(), getLogger(), s.auditFailureHook)
	return ""
}

// rebuildIndexes recomputes the lookup maps from the concept slice. Keys are
// registered first-wins in store order so indexed lookups match what a
// linear scan over the slice would find. Callers hold the write lock.
func (s *Store) rebuildIndexes() {
	s.index = make(map[string]int, len(s.concepts)*2)
	s.ids = make(map[string]int, len(s.concepts))

	for i := range s.concepts {
		c := &s.concepts[i]
		registerKey(s.index, strings.ToLower(c.ID), i)
		registerKey(s.index, strings.ToLower(c.Label), i)
		for _, syn := range c.Synonyms {
			registerKey(s.index, strings.ToLower(syn), i)
		}
		if _, exists := s.ids[strings.ToLower(c.ID)]; !exists {
			s.ids[strings.ToLower(c.ID)] = i
		}
	}
}

func registerKey(index map[string]int, key string, i int) {
	if key == "" {
		return
	}
	if _, exists := index[key]; !exists {
		index[key] = i
	}
}

// Find matches a keyword case-insensitively against concept ids, labels and
// synonyms, returning the first match in store order. No fuzzy matching.
func (s *Store) Find(keyword string) (Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(keyword)
}

func (s *Store) findLocked(keyword string) (Concept, bool) {
	i, ok := s.index[strings.ToLower(strings.TrimSpace(keyword))]
	if !ok {
		return Concept{}, false
	}
	return s.concepts[i].Clone(), true
}

// Related returns the concept neighborhood of the given id: the union of its
// related, broader, narrower and synonym references plus the concept itself,
// each resolved through Find. Unresolved references are silently dropped and
// the result is de-duplicated by resolved concept. The second return value
// is false when the concept itself does not exist.
func (s *Store) Related(conceptID string) ([]Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	self, ok := s.findLocked(conceptID)
	if !ok {
		return nil, false
	}

	refs := make([]string, 0, len(self.Related)+len(self.Broader)+len(self.Narrower)+len(self.Synonyms)+1)
	refs = append(refs, self.Related...)
	refs = append(refs, self.Broader...)
	refs = append(refs, self.Narrower...)
	refs = append(refs, self.Synonyms...)
	refs = append(refs, self.ID)

	seen := make(map[string]struct{})
	neighborhood := make([]Concept, 0, len(refs))
	for _, ref := range refs {
		c, found := s.findLocked(ref)
		if !found {
			continue
		}
		key := strings.ToLower(c.ID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		neighborhood = append(neighborhood, c)
	}
	return neighborhood, true
}

// Verses returns the verse references of a concept, or an empty slice when
// the concept is absent.
func (s *Store) Verses(conceptID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.findLocked(conceptID)
	if !ok {
		return []string{}
	}
	if c.Verses == nil {
		return []string{}
	}
	return c.Verses
}

// All returns a copy of the full concept set in store order.
func (s *Store) All() []Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()

	concepts := make([]Concept, 0, len(s.concepts))
	for i := range s.concepts {
		concepts = append(concepts, s.concepts[i].Clone())
	}
	return concepts
}

// Count returns the number of concepts in the working copy.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.concepts)
}

// Add appends a new concept, persists the set to the active backend and
// audits a CREATE. Fails with ErrDuplicateConcept when the id is already
// present; a failed add leaves the store unchanged.
func (s *Store) Add(ctx context.Context, concept Concept, actor *ActorInfo) error {
	if strings.TrimSpace(concept.ID) == "" {
		return validationError("concept id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[strings.ToLower(concept.ID)]; exists {
		return errors.New(fmt.Errorf("%w: %s", ErrDuplicateConcept, concept.ID)).
			Component("ontology").
			Category(errors.CategoryConflict).
			Context("concept_id", concept.ID).
			Build()
	}

	next := append(append([]Concept(nil), s.concepts...), concept.Clone())
	if err := s.backend.SaveAll(next); err != nil {
		return err
	}

	s.concepts = next
	s.rebuildIndexes()

	stored := concept.Clone()
	s.audit.Record(ctx, Mutation{
		ConceptID: concept.ID,
		Action:    ActionCreate,
		New:       &stored,
		Actor:     actor,
	})
	getLogger().Info("concept added", "concept_id", concept.ID, "storage", s.mode)
	return nil
}

// Update fully replaces the stored concept with the given id. This is a
// replace, not a merge: fields absent from newConcept are cleared.
func (s *Store) Update(ctx context.Context, conceptID string, newConcept Concept, actor *ActorInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.ids[strings.ToLower(conceptID)]
	if !exists {
		return notFoundError(conceptID)
	}

	old := s.concepts[i].Clone()
	replacement := newConcept.Clone()
	replacement.ID = old.ID // identity is immutable across updates

	next := append([]Concept(nil), s.concepts...)
	next[i] = replacement
	if err := s.backend.SaveAll(next); err != nil {
		return err
	}

	s.concepts = next
	s.rebuildIndexes()

	stored := replacement.Clone()
	s.audit.Record(ctx, Mutation{
		ConceptID: old.ID,
		Action:    ActionUpdate,
		Old:       &old,
		New:       &stored,
		Actor:     actor,
	})
	getLogger().Info("concept updated", "concept_id", old.ID, "storage", s.mode)
	return nil
}

// Delete removes the concept with the given id, persists and audits.
func (s *Store) Delete(ctx context.Context, conceptID string, actor *ActorInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.ids[strings.ToLower(conceptID)]
	if !exists {
		return notFoundError(conceptID)
	}

	old := s.concepts[i].Clone()
	next := append([]Concept(nil), s.concepts[:i]...)
	next = append(next, s.concepts[i+1:]...)
	if err := s.backend.SaveAll(next); err != nil {
		return err
	}

	s.concepts = next
	s.rebuildIndexes()

	s.audit.Record(ctx, Mutation{
		ConceptID: old.ID,
		Action:    ActionDelete,
		Old:       &old,
		Actor:     actor,
	})
	getLogger().Info("concept deleted", "concept_id", old.ID, "storage", s.mode)
	return nil
}

// SwitchStorage makes targetMode the active backend. The current in-memory
// set is persisted to the target's durable form first; only on success does
// the mode flip. Switching to the already-active mode is a no-op. Audit
// history is not migrated.
func (s *Store) SwitchStorage(targetMode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if targetMode == s.mode {
		return nil
	}

	switch targetMode {
	case conf.StorageRelational:
		if err := s.rel.Open(); err != nil {
			return err
		}
		if err := s.rel.EnsureSchema(); err != nil {
			return err
		}
		if err := s.rel.SaveAll(s.concepts); err != nil {
			return err
		}
		s.backend = s.rel
		s.audit = NewSQLRecorder(s.rel.DB(), getLogger(), s.auditFailureHook)
	case conf.StorageFlatFile:
		if err := s.flat.SaveAll(s.concepts); err != nil {
			return err
		}
		s.backend = s.flat
		s.audit = NoopRecorder{}
	default:
		return validationError(fmt.Sprintf("unknown storage mode %q", targetMode))
	}

	getLogger().Info("storage backend switched", "from", s.mode, "to", targetMode)
	s.mode = targetMode
	return nil
}

// SyncToRelational copies the in-memory concept set into the relational
// backend without changing the active mode. Used for manual reconciliation.
func (s *Store) SyncToRelational() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rel.Open(); err != nil {
		return err
	}
	if err := s.rel.EnsureSchema(); err != nil {
		return err
	}
	if err := s.rel.SaveAll(s.concepts); err != nil {
		return err
	}
	getLogger().Info("concepts synced to relational backend", "concepts", len(s.concepts))
	return nil
}

// ExportToFlatFile copies the in-memory concept set into the flat-file
// document without changing the active mode.
func (s *Store) ExportToFlatFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flat.SaveAll(s.concepts); err != nil {
		return err
	}
	getLogger().Info("concepts exported to flat-file backend", "concepts", len(s.concepts))
	return nil
}

// StorageMode returns the active storage mode.
func (s *Store) StorageMode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Info describes the active backend for the storage management surface.
func (s *Store) Info() StorageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location := s.flat.Path()
	if s.mode == conf.StorageRelational {
		location = fmt.Sprintf("%s (table %s)", s.rel.Path(), ConceptRecord{}.TableName())
	}
	return StorageInfo{
		StorageType:  s.mode,
		ConceptCount: len(s.concepts),
		Location:     location,
	}
}

// Audit returns the active audit recorder. While the flat-file backend is
// active this is a no-op recorder whose queries report unavailability.
func (s *Store) Audit() AuditRecorder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

// Close releases both backends.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flatErr := s.flat.Close()
	relErr := s.rel.Close()
	return errors.Join(flatErr, relErr)
}

func notFoundError(conceptID string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrConceptNotFound, conceptID)).
		Component("ontology").
		Category(errors.CategoryNotFound).
		Context("concept_id", conceptID).
		Build()
}

func validationError(message string) error {
	return errors.Newf("%s", message).
		Component("ontology").
		Category(errors.CategoryValidation).
		Build()
}
