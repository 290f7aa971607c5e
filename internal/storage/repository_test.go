package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func exerciseRepository(t *testing.T, repo Repository[sample]) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "missing"), ErrNotFound)

	require.NoError(t, repo.Put(ctx, "b", sample{ID: "b", Count: 2}))
	require.NoError(t, repo.Put(ctx, "a", sample{ID: "a", Count: 1}))
	require.NoError(t, repo.Put(ctx, "a", sample{ID: "a", Count: 3}))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 3, got.Count)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []sample{{ID: "a", Count: 3}, {ID: "b", Count: 2}}, all)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository[sample]())
}

func TestBadgerRepository(t *testing.T) {
	db, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exerciseRepository(t, NewBadgerRepository[sample](db, "samples"))

	other := NewBadgerRepository[sample](db, "others")
	items, err := other.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, items, "namespaces must not leak into each other")
}

func TestChecksumIsStable(t *testing.T) {
	a, err := Checksum(sample{ID: "x", Count: 1})
	require.NoError(t, err)
	b, err := Checksum(sample{ID: "x", Count: 1})
	require.NoError(t, err)
	c, err := Checksum(sample{ID: "x", Count: 2})
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 16)
}
