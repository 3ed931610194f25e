package merge_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/merge"
	"github.com/threestage/mergetree/pkg/object"
)

func writeCommit(t *testing.T, ctx context.Context, b object.Backend, tree hash.Hash, when time.Time, parents ...hash.Hash) hash.Hash {
	t.Helper()
	sig := object.Signature{Name: "tester", Email: "tester@example.com", When: when}
	c := &object.Commit{Tree: tree, Parents: parents, Author: sig, Committer: sig, Message: "m"}
	h, err := b.WriteCommit(ctx, c)
	require.NoError(t, err)
	return h
}

// TestRecursiveMerge_InnerFoldMessagesSurvive builds a two-ancestor
// reduction whose inner fold (merging the two ancestors together to
// synthesize a virtual base) itself conflicts, and checks that conflict's
// message reaches the final Result rather than being discarded along with
// the inner fold's own Session.
func TestRecursiveMerge_InnerFoldMessagesSurvive(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	base := time.Unix(1000, 0)

	root := buildTree(t, ctx, b, map[string]string{"base.txt": "x", "shared": "base-version"})
	rootCommit := writeCommit(t, ctx, b, root, base)

	// ancestorA modifies "shared"; ancestorB deletes it. Merging these two
	// ancestors together to synthesize the recursive driver's virtual base
	// is itself a modify/delete conflict, whose message must not vanish
	// once that fold's Result is reduced down to just its Tree.
	ancestorATree := buildTree(t, ctx, b, map[string]string{"base.txt": "x", "shared": "A-version"})
	ancestorBTree := buildTree(t, ctx, b, map[string]string{"base.txt": "x"})
	ancestorA := writeCommit(t, ctx, b, ancestorATree, base.Add(time.Minute), rootCommit)
	ancestorB := writeCommit(t, ctx, b, ancestorBTree, base.Add(time.Minute), rootCommit)

	head1Tree := buildTree(t, ctx, b, map[string]string{"final": "ours-version"})
	head2Tree := buildTree(t, ctx, b, map[string]string{"final": "theirs-version"})
	head1 := writeCommit(t, ctx, b, head1Tree, base.Add(2*time.Minute), ancestorA)
	head2 := writeCommit(t, ctx, b, head2Tree, base.Add(2*time.Minute), ancestorB)

	cfg := merge.NewConfig("ours", "theirs")
	result, err := merge.RecursiveMerge(ctx, b, []hash.Hash{ancestorA, ancestorB}, head1, head2, cfg)
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	require.Equal(t, merge.CleanConflicts, result.Clean)

	msgs := result.Session.Messages()
	require.Len(t, msgs, 2, "expected one message for the inner fold's conflict and one for the final merge's, got: %v", msgs)

	var sharedMsg string
	for _, m := range msgs {
		if strings.Contains(m, "Temporary merge branch 1") && strings.Contains(m, "Temporary merge branch 2") {
			sharedMsg = m
		}
	}
	require.NotEmpty(t, sharedMsg, "inner ancestor-reduction fold's conflict message should survive into the final result, got: %v", msgs)
	require.Contains(t, sharedMsg, "modify/delete")

	require.Contains(t, result.Session.ConflictedPaths(), "final")
}
