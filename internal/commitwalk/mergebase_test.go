package commitwalk_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/internal/commitwalk"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
	"github.com/threestage/mergetree/pkg/odb"
)

func newBackend() *odb.ODB {
	return odb.New(odb.NewMemoryStorage())
}

func writeCommit(t *testing.T, ctx context.Context, b object.Backend, tree hash.Hash, when time.Time, parents ...hash.Hash) hash.Hash {
	t.Helper()
	sig := object.Signature{Name: "tester", Email: "tester@example.com", When: when}
	c := &object.Commit{Tree: tree, Parents: parents, Author: sig, Committer: sig, Message: "m"}
	h, err := b.WriteCommit(ctx, c)
	require.NoError(t, err)
	return h
}

func TestMergeBasesEqualInputs(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	empty := object.NewTree(nil)
	treeHash, err := b.WriteTree(ctx, empty)
	require.NoError(t, err)
	root := writeCommit(t, ctx, b, treeHash, time.Unix(1000, 0))

	bases, err := commitwalk.MergeBases(ctx, b, root, root)
	require.NoError(t, err)
	require.Equal(t, []hash.Hash{root}, bases)
}

func TestMergeBasesLinearHistory(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	empty := object.NewTree(nil)
	treeHash, err := b.WriteTree(ctx, empty)
	require.NoError(t, err)

	base := time.Unix(1000, 0)
	root := writeCommit(t, ctx, b, treeHash, base)
	common := writeCommit(t, ctx, b, treeHash, base.Add(time.Minute), root)
	headA := writeCommit(t, ctx, b, treeHash, base.Add(2*time.Minute), common)
	headB := writeCommit(t, ctx, b, treeHash, base.Add(3*time.Minute), common)

	bases, err := commitwalk.MergeBases(ctx, b, headA, headB)
	require.NoError(t, err)
	require.Equal(t, []hash.Hash{common}, bases)
}

func TestMergeBasesUnrelatedHistories(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	empty := object.NewTree(nil)
	treeHash, err := b.WriteTree(ctx, empty)
	require.NoError(t, err)

	base := time.Unix(1000, 0)
	a := writeCommit(t, ctx, b, treeHash, base)
	c := writeCommit(t, ctx, b, treeHash, base.Add(time.Minute))

	bases, err := commitwalk.MergeBases(ctx, b, a, c)
	require.NoError(t, err)
	require.Empty(t, bases)
}

func TestMergeBasesStaleAncestorDropped(t *testing.T) {
	// common is an ancestor of both heads, but so is its own parent
	// root; only the nearer common ancestor should survive since the
	// older one is itself reachable from "common".
	ctx := context.Background()
	b := newBackend()
	empty := object.NewTree(nil)
	treeHash, err := b.WriteTree(ctx, empty)
	require.NoError(t, err)

	base := time.Unix(1000, 0)
	root := writeCommit(t, ctx, b, treeHash, base)
	common := writeCommit(t, ctx, b, treeHash, base.Add(time.Minute), root)
	headA := writeCommit(t, ctx, b, treeHash, base.Add(2*time.Minute), common)
	headB := writeCommit(t, ctx, b, treeHash, base.Add(3*time.Minute), common, root)

	bases, err := commitwalk.MergeBases(ctx, b, headA, headB)
	require.NoError(t, err)
	require.Equal(t, []hash.Hash{common}, bases)
}
