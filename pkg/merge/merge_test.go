package merge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/merge"
	"github.com/threestage/mergetree/pkg/odb"
)

func cfg() merge.Config {
	return merge.NewConfig("branch1", "branch2")
}

// Scenario 1: single-file identical content across all three sides merges
// cleanly to that content.
func TestMerge_IdenticalContent(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := buildTree(t, ctx, b, map[string]string{"file": "hA"})

	res, err := merge.Merge(ctx, b, base, base, base, cfg())
	require.NoError(t, err)
	assert.Equal(t, merge.CleanClean, res.Clean)
	assert.Empty(t, res.Session.Messages())
	assert.Equal(t, map[string]string{"file": "hA"}, flatten(t, ctx, b, res.Tree))
}

// Scenario 2: modify/delete conflict.
func TestMerge_ModifyDelete(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := buildTree(t, ctx, b, map[string]string{"a": "h0"})
	ours := buildTree(t, ctx, b, map[string]string{"a": "h1"})
	theirs := buildTree(t, ctx, b, map[string]string{})

	res, err := merge.Merge(ctx, b, base, ours, theirs, cfg())
	require.NoError(t, err)
	assert.Equal(t, merge.CleanConflicts, res.Clean)
	assert.Equal(t, map[string]string{"a": "h1"}, flatten(t, ctx, b, res.Tree))

	msgs := res.Session.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "CONFLICT (modify/delete): a deleted in branch2 and modified in branch1")
}

// Scenario 2, mirrored: deletion on ours instead of theirs swaps the labels.
func TestMerge_ModifyDelete_Mirrored(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := buildTree(t, ctx, b, map[string]string{"a": "h0"})
	ours := buildTree(t, ctx, b, map[string]string{})
	theirs := buildTree(t, ctx, b, map[string]string{"a": "h1"})

	res, err := merge.Merge(ctx, b, base, ours, theirs, cfg())
	require.NoError(t, err)
	assert.Equal(t, merge.CleanConflicts, res.Clean)
	assert.Equal(t, map[string]string{"a": "h1"}, flatten(t, ctx, b, res.Tree))
	assert.Contains(t, res.Session.Messages()[0], "CONFLICT (modify/delete): a deleted in branch1 and modified in branch2")
}

// Scenario 3: both sides agree on a new value, base differs.
func TestMerge_TwoSidesAgree(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := buildTree(t, ctx, b, map[string]string{"k": "hB"})
	ours := buildTree(t, ctx, b, map[string]string{"k": "hN"})
	theirs := buildTree(t, ctx, b, map[string]string{"k": "hN"})

	res, err := merge.Merge(ctx, b, base, ours, theirs, cfg())
	require.NoError(t, err)
	assert.Equal(t, merge.CleanClean, res.Clean)
	assert.Equal(t, map[string]string{"k": "hN"}, flatten(t, ctx, b, res.Tree))
}

// Scenario 4: added on one side only.
func TestMerge_AddedOnOneSide(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := buildTree(t, ctx, b, map[string]string{})
	ours := buildTree(t, ctx, b, map[string]string{"n": "hN"})
	theirs := buildTree(t, ctx, b, map[string]string{})

	res, err := merge.Merge(ctx, b, base, ours, theirs, cfg())
	require.NoError(t, err)
	assert.Equal(t, merge.CleanClean, res.Clean)
	assert.Equal(t, map[string]string{"n": "hN"}, flatten(t, ctx, b, res.Tree))
}

// Scenario 5: a directory that both sides emptied out must itself vanish
// from the root tree.
func TestMerge_DirectoryBecomesEmpty(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := buildTree(t, ctx, b, map[string]string{"d/a": "hA", "d/b": "hB"})
	ours := buildTree(t, ctx, b, map[string]string{})
	theirs := buildTree(t, ctx, b, map[string]string{})

	res, err := merge.Merge(ctx, b, base, ours, theirs, cfg())
	require.NoError(t, err)
	assert.Equal(t, merge.CleanClean, res.Clean)

	tr, err := b.Tree(ctx, res.Tree)
	require.NoError(t, err)
	assert.Empty(t, tr.Entries)
	_, ok := tr.Entry("d")
	assert.False(t, ok)
}

// Scenario 6: a directory on one side collides with a file of the same name
// on the other; the directory wins the bare path and the file is displaced.
func TestMerge_DirectoryFileConflict(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := buildTree(t, ctx, b, map[string]string{"p/sub": "hS"})
	ours := buildTree(t, ctx, b, map[string]string{"p": "hF"})
	theirs := buildTree(t, ctx, b, map[string]string{"p/sub": "hS"})

	res, err := merge.Merge(ctx, b, base, ours, theirs, cfg())
	require.NoError(t, err)
	assert.Equal(t, merge.CleanConflicts, res.Clean)

	tr, err := b.Tree(ctx, res.Tree)
	require.NoError(t, err)
	pEntry, ok := tr.Entry("p")
	require.True(t, ok)
	assert.True(t, pEntry.IsDir())

	sub, err := b.Tree(ctx, pEntry.Hash)
	require.NoError(t, err)
	subEntry, ok := sub.Entry("sub")
	require.True(t, ok)
	assert.Equal(t, "hS", mustBlobContent(t, ctx, b, subEntry.Hash))

	// The file side is displaced to p~branch1 (never silently dropped).
	displaced, ok := tr.Entry("p~branch1")
	require.True(t, ok)
	assert.Equal(t, "hF", mustBlobContent(t, ctx, b, displaced.Hash))

	found := false
	for _, p := range res.Session.ConflictedPaths() {
		if p == "p" {
			found = true
		}
	}
	assert.True(t, found, "conflicted set must contain the displaced path's original name")
}

func mustBlobContent(t *testing.T, ctx context.Context, b *odb.ODB, oid hash.Hash) string {
	t.Helper()
	content, err := b.ReadBlob(ctx, oid)
	require.NoError(t, err)
	return string(content)
}
