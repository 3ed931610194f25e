// Package commitwalk provides the commit-ancestry search the recursive
// driver (spec.md §4.6) needs to reduce an arbitrary pair of commits to
// their merge bases before the multi-ancestor reduction loop runs. It walks
// history ordered by commit time through a binary max-heap, the same shape
// as the reference VCS's author-time commit iterator
// (modules/zeta/object/commit_walker_atime.go), generalized to the
// paint-flag lowest-common-ancestor search.
package commitwalk

import (
	"context"
	"fmt"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
)

type paintFlag uint8

const (
	flagAncestor1 paintFlag = 1 << iota
	flagAncestor2
	flagResult
	flagStale
)

const bothAncestors = flagAncestor1 | flagAncestor2

// MergeBases returns the best common ancestors of a and b: commits reachable
// from both that are not themselves ancestors of another returned commit.
// Two equal inputs trivially merge-base to themselves. Empty when the two
// histories are unrelated.
func MergeBases(ctx context.Context, backend object.Backend, a, b hash.Hash) ([]hash.Hash, error) {
	if a == b {
		return []hash.Hash{a}, nil
	}

	flags := make(map[hash.Hash]paintFlag)
	heap := binaryheap.NewWith(byCommitTimeDesc)

	push := func(h hash.Hash, f paintFlag) error {
		if flags[h] == f {
			return nil
		}
		flags[h] = f
		c, err := backend.Commit(ctx, h)
		if err != nil {
			return fmt.Errorf("commitwalk: resolving %s: %w", h, err)
		}
		heap.Push(c)
		return nil
	}

	if err := push(a, flagAncestor1); err != nil {
		return nil, err
	}
	if err := push(b, flagAncestor2); err != nil {
		return nil, err
	}

	var results []hash.Hash
	for {
		v, ok := heap.Pop()
		if !ok {
			break
		}
		c := v.(*object.Commit)
		f := flags[c.Hash]

		if f&bothAncestors == bothAncestors && f&flagResult == 0 {
			flags[c.Hash] = f | flagResult
			f = flags[c.Hash]
			results = append(results, c.Hash)
		}

		propagate := f &^ flagResult
		if f&flagResult != 0 {
			propagate |= flagStale
		}
		for _, p := range c.Parents {
			existing := flags[p]
			next := existing | propagate
			if next == existing {
				continue
			}
			if err := push(p, next); err != nil {
				return nil, err
			}
		}
	}

	kept := results[:0]
	for _, h := range results {
		if flags[h]&flagStale == 0 {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

func byCommitTimeDesc(x, y any) int {
	a, b := x.(*object.Commit), y.(*object.Commit)
	if a.Committer.When.Equal(b.Committer.When) {
		return 0
	}
	if a.Committer.When.After(b.Committer.When) {
		return -1
	}
	return 1
}
