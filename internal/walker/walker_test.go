package walker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/internal/walker"
	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
	"github.com/threestage/mergetree/pkg/odb"
)

func writeBlob(t *testing.T, ctx context.Context, b object.Backend, content string) hash.Hash {
	t.Helper()
	h, err := b.WriteBlob(ctx, []byte(content))
	require.NoError(t, err)
	return h
}

func writeTree(t *testing.T, ctx context.Context, b object.Backend, entries ...*object.TreeEntry) hash.Hash {
	t.Helper()
	h, err := b.WriteTree(ctx, object.NewTree(entries))
	require.NoError(t, err)
	return h
}

type visitCall struct {
	prefix   string
	mask     uint8
	dirmask  uint8
	excluded uint8
}

func TestWalkVisitsEveryDistinctName(t *testing.T) {
	ctx := context.Background()
	b := odb.New(odb.NewMemoryStorage())

	hA := writeBlob(t, ctx, b, "a")
	hB := writeBlob(t, ctx, b, "b")

	baseTree, err := b.Tree(ctx, writeTree(t, ctx, b,
		&object.TreeEntry{Name: "only-base", Mode: filemode.Regular, Hash: hA},
		&object.TreeEntry{Name: "shared", Mode: filemode.Regular, Hash: hA},
	))
	require.NoError(t, err)
	oursTree, err := b.Tree(ctx, writeTree(t, ctx, b,
		&object.TreeEntry{Name: "shared", Mode: filemode.Regular, Hash: hA},
		&object.TreeEntry{Name: "only-ours", Mode: filemode.Regular, Hash: hB},
	))
	require.NoError(t, err)
	theirsTree, err := b.Tree(ctx, writeTree(t, ctx, b,
		&object.TreeEntry{Name: "shared", Mode: filemode.Regular, Hash: hB},
	))
	require.NoError(t, err)

	var calls []visitCall
	err = walker.Walk(ctx, b, baseTree, oursTree, theirsTree, func(_ context.Context, prefix string, mask, dirmask, excluded uint8, entries [walker.Sides]*object.TreeEntry) (bool, error) {
		calls = append(calls, visitCall{prefix: prefix, mask: mask, dirmask: dirmask, excluded: excluded})
		for i := range entries {
			present := mask&(1<<uint(i)) != 0
			require.Equal(t, present, entries[i] != nil, "prefix=%s side=%d", prefix, i)
		}
		return dirmask != 0, nil
	})
	require.NoError(t, err)
	require.Len(t, calls, 3)

	byPrefix := make(map[string]visitCall, len(calls))
	for _, c := range calls {
		byPrefix[c.prefix] = c
	}
	require.Equal(t, uint8(0b001), byPrefix["only-base"].mask)
	require.Equal(t, uint8(0b010), byPrefix["only-ours"].mask)
	require.Equal(t, uint8(0b111), byPrefix["shared"].mask)
	require.Equal(t, uint8(0), byPrefix["shared"].dirmask)
}

func TestWalkRecursesIntoDirectoriesOnRequest(t *testing.T) {
	ctx := context.Background()
	b := odb.New(odb.NewMemoryStorage())

	hA := writeBlob(t, ctx, b, "a")
	subOurs := writeTree(t, ctx, b, &object.TreeEntry{Name: "file.txt", Mode: filemode.Regular, Hash: hA})
	rootOurs, err := b.Tree(ctx, writeTree(t, ctx, b,
		&object.TreeEntry{Name: "dir", Mode: filemode.Dir, Hash: subOurs},
	))
	require.NoError(t, err)

	var seenChild bool
	err = walker.Walk(ctx, b, nil, rootOurs, nil, func(_ context.Context, prefix string, mask, dirmask, _ uint8, _ [walker.Sides]*object.TreeEntry) (bool, error) {
		if prefix == "dir/file.txt" {
			seenChild = true
		}
		return dirmask != 0, nil
	})
	require.NoError(t, err)
	require.True(t, seenChild, "walker must recurse into dir/ when the visitor asks it to")
}

func TestWalkDoesNotRecurseWhenVisitorDeclines(t *testing.T) {
	ctx := context.Background()
	b := odb.New(odb.NewMemoryStorage())

	hA := writeBlob(t, ctx, b, "a")
	subOurs := writeTree(t, ctx, b, &object.TreeEntry{Name: "file.txt", Mode: filemode.Regular, Hash: hA})
	rootOurs, err := b.Tree(ctx, writeTree(t, ctx, b,
		&object.TreeEntry{Name: "dir", Mode: filemode.Dir, Hash: subOurs},
	))
	require.NoError(t, err)

	calls := 0
	err = walker.Walk(ctx, b, rootOurs, rootOurs, rootOurs, func(_ context.Context, _ string, _, dirmask, _ uint8, _ [walker.Sides]*object.TreeEntry) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls, "declining recursion at dir/ must not visit its children")
}

func TestWalkMarksExcludedSideBelowDFConflict(t *testing.T) {
	ctx := context.Background()
	b := odb.New(odb.NewMemoryStorage())

	hA := writeBlob(t, ctx, b, "a")
	hFile := writeBlob(t, ctx, b, "file-variant")
	subTree := writeTree(t, ctx, b, &object.TreeEntry{Name: "child", Mode: filemode.Regular, Hash: hA})

	base, err := b.Tree(ctx, writeTree(t, ctx, b, &object.TreeEntry{Name: "p", Mode: filemode.Dir, Hash: subTree}))
	require.NoError(t, err)
	ours, err := b.Tree(ctx, writeTree(t, ctx, b, &object.TreeEntry{Name: "p", Mode: filemode.Regular, Hash: hFile}))
	require.NoError(t, err)
	theirs, err := b.Tree(ctx, writeTree(t, ctx, b, &object.TreeEntry{Name: "p", Mode: filemode.Dir, Hash: subTree}))
	require.NoError(t, err)

	var childExcluded uint8
	err = walker.Walk(ctx, b, base, ours, theirs, func(_ context.Context, prefix string, _, dirmask, excluded uint8, _ [walker.Sides]*object.TreeEntry) (bool, error) {
		if prefix == "p/child" {
			childExcluded = excluded
		}
		return dirmask != 0, nil
	})
	require.NoError(t, err)
	require.Equal(t, uint8(1<<walker.Ours), childExcluded, "ours was a file at p/, so it never contributed a child to exclude from")
}
