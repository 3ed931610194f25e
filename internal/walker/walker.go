// Package walker implements the synchronized three-tree traversal the merge
// engine's Collector is driven by. It generalizes a two-way merkle-trie
// iterator to three trees walked in lock-step by name, resolving subtrees
// eagerly through an object.Backend rather than lazily through a noder
// abstraction — trees are already fully addressable by hash, so there is no
// streaming source to preserve laziness for.
package walker

import (
	"context"
	"fmt"
	"sort"

	"github.com/threestage/mergetree/pkg/object"
)

// Side indexes the three trees a Visit callback is given: base, ours,
// theirs, matching the stage convention (0, 1, 2) used throughout the merge
// engine.
const (
	Base = iota
	Ours
	Theirs
	Sides = 3
)

// Visit is invoked once per distinct name seen at a given directory level
// across the three trees. mask has bit i set iff side i has an entry here;
// dirmask has bit i set iff that entry is a directory. entries[i] is nil
// when mask's bit i is clear. excluded has bit i set iff side i is not
// really absent here but structurally blocked: an ancestor directory on
// this path was a directory/file conflict and side i was the file, so it
// contributed no subtree to descend into. A caller that treats an absent
// side as "deleted" must not draw that conclusion for an excluded side —
// it never had the opportunity to delete something it never saw. Returning
// recurse=true descends into any side that is a directory (the collector
// sets this to false for entries it resolved without needing their
// children, mirroring the spec's "walker skips recursion only when the
// collector itself handled it").
type Visit func(ctx context.Context, prefix string, mask, dirmask, excluded uint8, entries [Sides]*object.TreeEntry) (recurse bool, err error)

// Walk drives visit across base/ours/theirs starting at the root. Any of
// the three trees may be nil, meaning that side is entirely absent (used by
// the recursive driver's synthetic empty-tree ancestor).
func Walk(ctx context.Context, backend object.Backend, base, ours, theirs *object.Tree, visit Visit) error {
	return walkLevel(ctx, backend, [Sides]*object.Tree{base, ours, theirs}, "", 0, visit)
}

func walkLevel(ctx context.Context, backend object.Backend, trees [Sides]*object.Tree, prefix string, excluded uint8, visit Visit) error {
	names := collectNames(trees)
	for _, name := range names {
		var mask, dirmask uint8
		var entries [Sides]*object.TreeEntry
		for i, t := range trees {
			if t == nil {
				continue
			}
			e, ok := t.Entry(name)
			if !ok {
				continue
			}
			entries[i] = e
			mask |= 1 << uint(i)
			if e.IsDir() {
				dirmask |= 1 << uint(i)
			}
		}
		if mask == 0 {
			continue
		}
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		recurse, err := visit(ctx, childPrefix, mask, dirmask, excluded, entries)
		if err != nil {
			return err
		}
		if !recurse || dirmask == 0 {
			continue
		}
		var children [Sides]*object.Tree
		childExcluded := excluded
		for i := range trees {
			if dirmask&(1<<uint(i)) == 0 {
				if mask&(1<<uint(i)) != 0 {
					// Present here but not a directory: a
					// directory/file conflict blocks this side
					// from contributing anything underneath.
					childExcluded |= 1 << uint(i)
				}
				continue
			}
			child, err := backend.Tree(ctx, entries[i].Hash)
			if err != nil {
				return fmt.Errorf("walker: resolving %s at %s: %w", sideName(i), childPrefix, err)
			}
			children[i] = child
		}
		if err := walkLevel(ctx, backend, children, childPrefix, childExcluded, visit); err != nil {
			return err
		}
	}
	return nil
}

func sideName(i int) string {
	switch i {
	case Base:
		return "base"
	case Ours:
		return "ours"
	case Theirs:
		return "theirs"
	default:
		return "?"
	}
}

func collectNames(trees [Sides]*object.Tree) []string {
	seen := make(map[string]struct{})
	for _, t := range trees {
		if t == nil {
			continue
		}
		for _, e := range t.Entries {
			seen[e.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
