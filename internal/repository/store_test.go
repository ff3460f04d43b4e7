package repository

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rate struct {
	Currency string
	Value    float64
}

func TestNew(t *testing.T) {
	repo := New[rate]("rate")

	require.NotNil(t, repo)
	assert.Equal(t, "rate", repo.ItemType())
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, repo.Get(nil))
}

func TestRepository_AddPreservesOrder(t *testing.T) {
	repo := New[rate]("rate")

	repo.Add([]rate{{"EUR", 1}, {"USD", 1.1}})
	repo.Add([]rate{{"GBP", 0.8}})

	got := repo.Get(nil)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"EUR", "USD", "GBP"}, []string{got[0].Currency, got[1].Currency, got[2].Currency})
}

func TestRepository_AddEmptyBatch(t *testing.T) {
	repo := New[rate]("rate")
	repo.Add(nil)
	repo.Add([]rate{})

	assert.Equal(t, 0, repo.Len())
}

func TestRepository_Clear(t *testing.T) {
	repo := New[rate]("rate")
	repo.Add([]rate{{"EUR", 1}})

	repo.Clear()

	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, repo.Get(nil))
}

func TestRepository_GetFilters(t *testing.T) {
	repo := New[rate]("rate")
	repo.Add([]rate{{"EUR", 1}, {"USD", 1.1}, {"JPY", 160}})

	got := repo.Get(func(r rate) bool { return r.Value > 1 })

	require.Len(t, got, 2)
	assert.Equal(t, "USD", got[0].Currency)
	assert.Equal(t, "JPY", got[1].Currency)
}

func TestRepository_GetReturnsCopy(t *testing.T) {
	repo := New[rate]("rate")
	repo.Add([]rate{{"EUR", 1}})

	got := repo.Get(nil)
	got[0].Value = 42

	assert.Equal(t, float64(1), repo.Get(nil)[0].Value, "modifying a snapshot should not affect the repository")
}

func TestRepository_SnapshotType(t *testing.T) {
	var store Store = New[rate]("rate")
	store.(*Repository[rate]).Add([]rate{{"EUR", 1}})

	items, ok := store.Snapshot().([]rate)
	require.True(t, ok, "snapshot should be a []rate")
	assert.Len(t, items, 1)
}

func TestRepository_Concurrency(t *testing.T) {
	repo := New[rate]("rate")

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Get(nil)
			_ = repo.Len()
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Add([]rate{{"EUR", 1}, {"USD", 2}})
		}()
	}

	wg.Wait()

	// batches are appended atomically, so the total is always even
	assert.Equal(t, numGoroutines*2, repo.Len())
}
