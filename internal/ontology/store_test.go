package ontology

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/errors"
)

// newTestSettings returns settings pointing both backends into a temp dir.
func newTestSettings(t *testing.T, storage string) *conf.Settings {
	t.Helper()
	dir := t.TempDir()

	settings := &conf.Settings{}
	settings.Ontology.Storage = storage
	settings.Ontology.FlatFilePath = filepath.Join(dir, "concepts.json")
	settings.Ontology.SQLitePath = filepath.Join(dir, "semquery.db")
	return settings
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(newTestSettings(t, conf.StorageFlatFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sabarConcept() Concept {
	return Concept{
		ID:       "sabar",
		Label:    "Sabar",
		Synonyms: []string{"tabah"},
		Related:  []string{"ridha"},
		Verses:   []string{"2:153", "3:200"},
	}
}

func TestFindMatchesIDLabelAndSynonymsCaseInsensitively(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Add(context.Background(), sabarConcept(), nil))

	for _, keyword := range []string{"sabar", "SABAR", "Sabar", "tabah", "TaBaH"} {
		concept, found := store.Find(keyword)
		require.True(t, found, "keyword %q should resolve", keyword)
		assert.Equal(t, "sabar", concept.ID, "keyword %q", keyword)
	}

	_, found := store.Find("nonexistent")
	assert.False(t, found)
}

func TestFindReturnsFirstMatchInStoreOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// "patience" is a synonym of the first concept and the label of the
	// second; store order decides.
	require.NoError(t, store.Add(ctx, Concept{ID: "sabar", Label: "Sabar", Synonyms: []string{"patience"}}, nil))
	require.NoError(t, store.Add(ctx, Concept{ID: "patience", Label: "Patience"}, nil))

	concept, found := store.Find("patience")
	require.True(t, found)
	assert.Equal(t, "sabar", concept.ID)
}

func TestRelatedAbsentConceptReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	related, found := store.Related("missing")
	assert.False(t, found)
	assert.Nil(t, related)
}

func TestRelatedResolvesNeighborhoodAndDropsUnresolved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Concept{
		ID:      "sabar",
		Label:   "Sabar",
		Related: []string{"ridha", "ghost"},
		Broader: []string{"akhlaq"},
	}, nil))
	require.NoError(t, store.Add(ctx, Concept{ID: "ridha", Label: "Ridha"}, nil))
	require.NoError(t, store.Add(ctx, Concept{ID: "akhlaq", Label: "Akhlaq"}, nil))

	related, found := store.Related("sabar")
	require.True(t, found)

	ids := make([]string, 0, len(related))
	for _, c := range related {
		ids = append(ids, c.ID)
	}
	// "ghost" is unresolved and silently dropped; self is included once.
	assert.ElementsMatch(t, []string{"ridha", "akhlaq", "sabar"}, ids)
}

func TestVersesAbsentConceptReturnsEmpty(t *testing.T) {
	store := newTestStore(t)

	verses := store.Verses("missing")
	assert.NotNil(t, verses)
	assert.Empty(t, verses)
}

func TestAddDuplicateFailsAndLeavesStoreUnchanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, sabarConcept(), nil))
	before := store.All()

	dup := sabarConcept()
	dup.Label = "Other"
	err := store.Add(ctx, dup, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateConcept))

	assert.Equal(t, before, store.All())
	assert.Equal(t, 1, store.Count())
}

func TestAddDuplicateIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Concept{ID: "sabar", Label: "Sabar"}, nil))
	err := store.Add(ctx, Concept{ID: "SABAR", Label: "Sabar"}, nil)
	assert.True(t, errors.Is(err, ErrDuplicateConcept))
}

func TestUpdateReplacesRecordFully(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, sabarConcept(), nil))
	require.NoError(t, store.Update(ctx, "sabar", Concept{ID: "sabar", Label: "Patience"}, nil))

	concept, found := store.Find("sabar")
	require.True(t, found)
	assert.Equal(t, "Patience", concept.Label)
	// Replace, not merge: old synonyms and verses are gone.
	assert.Empty(t, concept.Synonyms)
	assert.Empty(t, concept.Verses)

	// The old synonym no longer resolves.
	_, found = store.Find("tabah")
	assert.False(t, found)
}

func TestUpdateAndDeleteMissingConceptFail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, "missing", Concept{ID: "missing"}, nil)
	assert.True(t, errors.Is(err, ErrConceptNotFound))

	err = store.Delete(ctx, "missing", nil)
	assert.True(t, errors.Is(err, ErrConceptNotFound))
}

func TestSwitchStorageRoundTripPreservesConceptSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, sabarConcept(), nil))
	require.NoError(t, store.Add(ctx, Concept{ID: "ridha", Label: "Ridha"}, nil))
	original := store.All()

	require.NoError(t, store.SwitchStorage(conf.StorageRelational))
	assert.Equal(t, conf.StorageRelational, store.StorageMode())
	assert.Equal(t, 2, store.Info().ConceptCount)

	require.NoError(t, store.SwitchStorage(conf.StorageFlatFile))
	assert.Equal(t, conf.StorageFlatFile, store.StorageMode())
	assert.Equal(t, 2, store.Info().ConceptCount)

	assert.Equal(t, original, store.All())
}

func TestSwitchStorageToActiveModeIsNoop(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SwitchStorage(conf.StorageFlatFile))
	assert.Equal(t, conf.StorageFlatFile, store.StorageMode())
}

func TestSwitchStorageUnknownModeFails(t *testing.T) {
	store := newTestStore(t)
	err := store.SwitchStorage("carrier-pigeon")
	require.Error(t, err)
	assert.Equal(t, conf.StorageFlatFile, store.StorageMode())
}

func TestNewUnknownStorageModeFails(t *testing.T) {
	settings := newTestSettings(t, "carrier-pigeon")

	store, err := New(settings)
	require.Error(t, err)
	assert.Nil(t, store)

	var enhanced *errors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.Equal(t, errors.CategoryValidation, enhanced.Category)
}

func TestRelationalRequestedWithoutSchemaFallsBackToFlatFile(t *testing.T) {
	settings := newTestSettings(t, conf.StorageRelational)

	store, err := New(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// No concepts table exists yet; the store downgrades itself.
	assert.Equal(t, conf.StorageFlatFile, store.StorageMode())

	// Audit queries report unavailability in flat-file mode.
	_, err = store.Audit().Query(context.Background(), AuditFilter{})
	assert.True(t, errors.Is(err, ErrAuditUnavailable))
}

func TestRelationalStartupLoadsPersistedConcepts(t *testing.T) {
	settings := newTestSettings(t, conf.StorageFlatFile)

	first, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, first.Add(context.Background(), sabarConcept(), nil))
	require.NoError(t, first.SwitchStorage(conf.StorageRelational))
	require.NoError(t, first.Close())

	settings.Ontology.Storage = conf.StorageRelational
	second, err := New(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	assert.Equal(t, conf.StorageRelational, second.StorageMode())
	concept, found := second.Find("sabar")
	require.True(t, found)
	assert.Equal(t, []string{"tabah"}, concept.Synonyms)
}

func TestStorageInfoReportsActiveBackend(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Add(context.Background(), sabarConcept(), nil))

	info := store.Info()
	assert.Equal(t, conf.StorageFlatFile, info.StorageType)
	assert.Equal(t, 1, info.ConceptCount)
	assert.True(t, strings.HasSuffix(info.Location, "concepts.json"))
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, sabarConcept(), nil))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if concept, found := store.Find("sabar"); found {
					// A reader must never observe a half-applied write.
					assert.Equal(t, "sabar", concept.ID)
				}
				store.Related("sabar")
				store.Verses("sabar")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 20 {
			c := sabarConcept()
			c.Verses = append(c.Verses, "8:46")
			_ = store.Update(ctx, "sabar", c, nil)
			_ = i
		}
	}()

	wg.Wait()
	assert.Equal(t, 1, store.Count())
}
