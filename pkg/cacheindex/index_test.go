package cacheindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/pkg/cacheindex"
	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
)

func TestIndexAddAndEntry(t *testing.T) {
	idx := cacheindex.New()
	idx.Add("a.txt", filemode.Regular, hash.Of([]byte("a")))
	idx.Add("b.txt", filemode.Regular, hash.Of([]byte("b")))

	e, err := idx.Entry("a.txt")
	require.NoError(t, err)
	require.Equal(t, "a.txt", e.Name)
	require.Equal(t, cacheindex.Merged, e.Stage)

	_, err = idx.Entry("missing.txt")
	require.ErrorIs(t, err, cacheindex.ErrEntryNotFound)
}

func TestFindOverLengthExcludesAppendedRows(t *testing.T) {
	idx := cacheindex.New()
	idx.Add("a.txt", filemode.Regular, hash.Of([]byte("a")))
	originalLen := len(idx.Entries)

	// Simulate the materializer appending a higher-stage row for a
	// different path after the original length was captured.
	idx.Entries = append(idx.Entries, &cacheindex.Entry{
		Name: "a.txt", Mode: filemode.Regular, Hash: hash.Of([]byte("a-ours")), Stage: cacheindex.Ours,
	})

	// A lookup bounded to the original length must not see the appended
	// stage-2 row, even though it shares the same name.
	pos := idx.FindOverLength("a.txt", originalLen)
	require.Equal(t, 0, pos)

	// An unbounded lookup still finds the original Merged-stage row
	// first, since the appended row has a non-Merged stage.
	e, err := idx.Entry("a.txt")
	require.NoError(t, err)
	require.Equal(t, cacheindex.Merged, e.Stage)
}

func TestRemoveAtAndSort(t *testing.T) {
	idx := cacheindex.New()
	idx.Add("z.txt", filemode.Regular, hash.Of([]byte("z")))
	idx.Add("a.txt", filemode.Regular, hash.Of([]byte("a")))
	idx.RemoveAt([]int{0})
	require.Len(t, idx.Entries, 1)
	require.Equal(t, "a.txt", idx.Entries[0].Name)

	idx.Entries = append(idx.Entries, &cacheindex.Entry{Name: "a.txt", Stage: cacheindex.Ours})
	idx.Entries = append(idx.Entries, &cacheindex.Entry{Name: "a.txt", Stage: cacheindex.Ancestor})
	idx.Sort()
	require.Equal(t, cacheindex.Ancestor, idx.Entries[0].Stage)
	require.Equal(t, cacheindex.Ours, idx.Entries[1].Stage)
}
