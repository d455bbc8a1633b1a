package meta

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nickyhof/orpheus/core"
	"github.com/stretchr/testify/require"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

func TestNewMemoryStore(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}

	if !store.IsInitialized() {
		t.Error("Expected store to be initialized")
	}
}

func TestStoreNotInitialized(t *testing.T) {
	var store Store

	if store.IsInitialized() {
		t.Error("Expected uninitialized store to return false")
	}

	if _, err := store.Load(); err != ErrNotInitialized {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestLoadEmptyStore(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)

	doc, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, doc.TableMap)
	require.Empty(t, doc.FileMap)
	require.Empty(t, doc.MergedTables)
}

func TestCommitAndLoadParentInfo(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc, err := store.Load()
	require.NoError(t, err)
	doc.Update("orders_clone", "", "orders", []int64{1, 2}, now)
	doc.Update("", "out/orders.csv", "orders", []int64{3}, now)

	txn, err := store.Commit(doc, testIdentity, "checkout")
	require.NoError(t, err)
	require.NotEmpty(t, txn.Id)
	require.Equal(t, "test <test@test.com>", txn.Author)

	derivation, err := store.LoadParentInfo("orders_clone")
	require.NoError(t, err)
	require.Equal(t, "orders", derivation.Dataset)
	require.Equal(t, []int64{1, 2}, derivation.Versions)
	require.True(t, derivation.IsMerge())

	fileDerivation, err := store.LoadFileParentInfo("out/orders.csv")
	require.NoError(t, err)
	require.Equal(t, []int64{3}, fileDerivation.Versions)

	reloaded, err := store.Load()
	require.NoError(t, err)
	created, ok := reloaded.TableCreateTime("orders_clone")
	require.True(t, ok)
	require.True(t, created.Equal(now))
	require.True(t, reloaded.IsMerged("orders_clone"))
}

func TestLoadParentInfoUnknown(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)

	_, err = store.LoadParentInfo("nope")
	require.ErrorIs(t, err, core.ErrNoDerivation)

	_, err = store.LoadFileParentInfo("nope.csv")
	require.ErrorIs(t, err, core.ErrNoDerivation)
}

func TestUpdateOverwritesEntry(t *testing.T) {
	doc := NewDocument()
	now := time.Now()

	doc.Update("t", "", "orders", []int64{1, 2}, now)
	doc.Update("t", "", "orders", []int64{3}, now)

	require.Equal(t, []int64{3}, doc.TableMap["t"].Versions)
	// merged status is sticky once recorded
	require.True(t, doc.IsMerged("t"))
	require.Len(t, doc.MergedTables, 1)
}

func TestModifyKeepsConcurrentUpdates(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Modify(testIdentity, "checkout", func(doc *Document) error {
				doc.Update(fmt.Sprintf("t%d", i), "", "orders", []int64{1}, time.Now())
				return nil
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, doc.TableMap, 10)
}

func TestModifyAbortsOnError(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Modify(testIdentity, "checkout", func(doc *Document) error {
		doc.Update("t", "", "orders", []int64{1}, time.Now())
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Equal(t, Transaction{}, store.LatestTransaction())
}

func TestCleanAndHistory(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)

	doc := NewDocument()
	doc.Update("t", "", "orders", []int64{1}, time.Now())
	_, err = store.Commit(doc, testIdentity, "checkout")
	require.NoError(t, err)

	_, err = store.Clean(testIdentity)
	require.NoError(t, err)

	cleaned, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, cleaned.TableMap)

	history, err := store.History(time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "Cleaning metadata", history[0].Message)
	require.Equal(t, store.LatestTransaction().Id, history[0].Id)
}

func TestFileStorePersists(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	doc := NewDocument()
	doc.Update("t", "", "orders", []int64{4}, time.Now())
	_, err = store.Commit(doc, testIdentity, "checkout")
	require.NoError(t, err)

	reopened, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	derivation, err := reopened.LoadParentInfo("t")
	require.NoError(t, err)
	require.Equal(t, []int64{4}, derivation.Versions)
}
