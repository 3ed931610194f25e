package merge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/threestage/mergetree/internal/commitwalk"
	"github.com/threestage/mergetree/internal/progress"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
)

// ancestorProgressThreshold is the ancestor-count above which the recursive
// driver reports reduction progress — "more than a handful" per
// SPEC_FULL.md's Progress reporting section.
const ancestorProgressThreshold = 4

// CleanState is the trinary result of a merge: positive means clean,
// zero means conflicts were recorded (the tree still materialized), and
// negative means a fatal error aborted before any tree was produced.
type CleanState int

const (
	CleanError     CleanState = -1
	CleanConflicts CleanState = 0
	CleanClean     CleanState = 1
)

// Result is the output record of spec.md §6: a tree handle (unset on
// error), the trinary clean state, and the session, which owns accumulated
// per-path messages.
type Result struct {
	Tree    hash.Hash
	Clean   CleanState
	Session *Session
}

// Merge runs the non-recursive three-way merge pipeline: collect, rename,
// resolve, write. It is the core entry point every other entry point (the
// recursive driver, the service layer, the CLI) ultimately calls.
func Merge(ctx context.Context, backend object.Backend, baseOID, oursOID, theirsOID hash.Hash, cfg Config) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = &Result{Clean: CleanError}, newStructuralError(r)
		}
	}()

	var base, ours, theirs *object.Tree
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		base, err = resolveTree(gctx, backend, baseOID, cfg)
		return err
	})
	g.Go(func() (err error) {
		ours, err = resolveTree(gctx, backend, oursOID, cfg)
		return err
	})
	g.Go(func() (err error) {
		theirs, err = resolveTree(gctx, backend, theirsOID, cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		return &Result{Clean: CleanError}, err
	}
	return mergeTrees(ctx, backend, base, ours, theirs, cfg, 0, newSession(cfg.Branch1, cfg.Branch2))
}

func resolveTree(ctx context.Context, backend object.Backend, oid hash.Hash, cfg Config) (*object.Tree, error) {
	if oid.IsZero() {
		t := object.NewTree(nil)
		if _, err := backend.WriteTree(ctx, t); err != nil {
			cfg.logger().Warnf("merge: failed writing empty tree: %v", err)
			return nil, newStoreError("write empty tree", oid.String(), err)
		}
		return t, nil
	}
	t, err := backend.Tree(ctx, oid)
	if err != nil {
		cfg.logger().Warnf("merge: failed reading tree %s: %v", oid, err)
		return nil, newStoreError("read tree", oid.String(), err)
	}
	return t, nil
}

// mergeTrees runs one (non-recursive) pass of the pipeline against s, which
// it partially resets first so the recursive driver can reuse one Session
// — and its accumulated output — across every fold of a multi-ancestor
// reduction instead of starting a fresh one per call.
func mergeTrees(ctx context.Context, backend object.Backend, base, ours, theirs *object.Tree, cfg Config, callDepth int, s *Session) (*Result, error) {
	s.partialReset()
	s.CallDepth = callDepth
	s.Branch1, s.Branch2 = cfg.Branch1, cfg.Branch2

	log := cfg.logger()
	log.Infof("merge: starting depth=%d branch1=%q branch2=%q", callDepth, cfg.Branch1, cfg.Branch2)

	if err := collect(ctx, backend, s, base, ours, theirs); err != nil {
		return &Result{Clean: CleanError, Session: s}, &collectError{
			base: treeOID(base), ours: treeOID(ours), theirs: treeOID(theirs), err: err,
		}
	}

	if _, err := cfg.renamePass().Detect(ctx, s); err != nil {
		return &Result{Clean: CleanError, Session: s}, fmt.Errorf("merge: rename pass failed: %w", err)
	}

	if err := resolve(ctx, s, cfg); err != nil {
		return &Result{Clean: CleanError, Session: s}, err
	}

	treeHash, err := writeTrees(ctx, backend, s, cfg)
	if err != nil {
		return &Result{Clean: CleanError, Session: s}, err
	}

	clean := CleanClean
	if len(s.conflicted) > 0 {
		clean = CleanConflicts
	}
	log.Infof("merge: finished depth=%d clean=%v conflicts=%d tree=%s", callDepth, clean == CleanClean, len(s.conflicted), treeHash)
	return &Result{Tree: treeHash, Clean: clean, Session: s}, nil
}

// treeOID is a best-effort label for a resolved tree used only in
// diagnostics; trees themselves don't carry their own hash once read, so
// this recomputes it by writing (a no-op for an already-present object).
func treeOID(t *object.Tree) string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d entries", len(t.Entries))
}

// RecursiveMerge implements spec.md §4.6: it reduces a set of merge-base
// commits to a single virtual base before running the non-recursive
// pipeline against it and the two branch heads. Each reduction step itself
// recurses through commitwalk.MergeBases to find the merge base of the
// running base and the next ancestor, mirroring merge-ort.c's
// merge_ort_internal, which re-derives merge bases on every nested call
// rather than threading a flattened list through.
func RecursiveMerge(ctx context.Context, backend object.Backend, ancestors []hash.Hash, head1, head2 hash.Hash, cfg Config) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = &Result{Clean: CleanError}, newStructuralError(r)
		}
	}()
	// One Session, reused (via mergeTrees' partialReset) across every fold
	// of the ancestor reduction and the final merge, so conflict messages
	// raised while merging temporary common ancestors together are not
	// lost when that fold's Result is discarded in favor of its Tree.
	sess := newSession(cfg.Branch1, cfg.Branch2)
	return recursiveMergeDepth(ctx, backend, ancestors, head1, head2, cfg, 0, sess)
}

func recursiveMergeDepth(ctx context.Context, backend object.Backend, ancestors []hash.Hash, head1, head2 hash.Hash, cfg Config, depth int, sess *Session) (*Result, error) {
	ours, err := resolveCommitTree(ctx, backend, head1, cfg)
	if err != nil {
		return &Result{Clean: CleanError}, err
	}
	theirs, err := resolveCommitTree(ctx, backend, head2, cfg)
	if err != nil {
		return &Result{Clean: CleanError}, err
	}

	if len(ancestors) == 0 {
		emptyTree := object.NewTree(nil)
		if _, err := backend.WriteTree(ctx, emptyTree); err != nil {
			cfg.logger().Warnf("merge: failed writing empty tree: %v", err)
			return &Result{Clean: CleanError}, newStoreError("write empty tree", "", err)
		}
		return finishRecursive(ctx, backend, emptyTree, ours, theirs, cfg, "empty tree", depth, sess)
	}

	reporter := progress.NewReporter(depth == 0 && cfg.ShowRenameProgress && len(ancestors) > ancestorProgressThreshold)
	bar := reporter.Stage("Reducing merge bases", len(ancestors)-1)
	defer reporter.Wait()

	mergedBase := ancestors[0]
	for _, a := range ancestors[1:] {
		innerCfg := cfg
		innerCfg.Branch1 = "Temporary merge branch 1"
		innerCfg.Branch2 = "Temporary merge branch 2"

		innerBases, err := commitwalk.MergeBases(ctx, backend, mergedBase, a)
		if err != nil {
			return &Result{Clean: CleanError}, err
		}
		inner, err := recursiveMergeDepth(ctx, backend, innerBases, mergedBase, a, innerCfg, depth+1, sess)
		if err != nil || inner.Clean == CleanError {
			return &Result{Clean: CleanError}, err
		}

		next := &object.Commit{Tree: inner.Tree, Parents: []hash.Hash{mergedBase, a}}
		nextHash, err := backend.WriteCommit(ctx, next)
		if err != nil {
			return &Result{Clean: CleanError}, newStoreError("write virtual merge-base commit", "", err)
		}
		mergedBase = nextHash
		bar.Increment(1)
	}
	bar.Done()

	label := abbreviated(ancestors[len(ancestors)-1])
	if len(ancestors) > 1 {
		label = "merged common ancestors"
	}
	baseTree, err := resolveCommitTree(ctx, backend, mergedBase, cfg)
	if err != nil {
		return &Result{Clean: CleanError}, err
	}
	return finishRecursive(ctx, backend, baseTree, ours, theirs, cfg, label, depth, sess)
}

func finishRecursive(ctx context.Context, backend object.Backend, base, ours, theirs *object.Tree, cfg Config, label string, depth int, sess *Session) (*Result, error) {
	result, err := mergeTrees(ctx, backend, base, ours, theirs, cfg, depth, sess)
	if result != nil && result.Session != nil {
		result.Session.AncestorLabel = label
	}
	return result, err
}

func resolveCommitTree(ctx context.Context, backend object.Backend, oid hash.Hash, cfg Config) (*object.Tree, error) {
	c, err := backend.Commit(ctx, oid)
	if err != nil {
		cfg.logger().Warnf("merge: failed reading commit %s: %v", oid, err)
		return nil, newStoreError("read commit", oid.String(), err)
	}
	t, err := c.Root(ctx, backend)
	if err != nil {
		cfg.logger().Warnf("merge: failed reading tree %s: %v", c.Tree, err)
		return nil, newStoreError("read tree", c.Tree.String(), err)
	}
	return t, nil
}

func abbreviated(h hash.Hash) string {
	s := h.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
