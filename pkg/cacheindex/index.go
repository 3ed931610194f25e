// Package cacheindex implements the mutable index the merge engine's Index
// materializer writes higher-stage entries into: a trimmed adaptation of a
// VCS working-tree index, kept to the Entry/Stage/Index shapes spec.md's
// materializer contract needs and dropping the worktree-specific extensions
// (split index, untracked cache, filesystem-monitor cache) that have no
// bearing on a merge result.
package cacheindex

import (
	"errors"
	"sort"

	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
)

// Stage identifies which side of a three-way merge an index entry came
// from. Stage 0 is the ordinary, fully-merged case; stages 1-3 appear only
// for paths still in conflict, one row per side that had a version.
type Stage int

const (
	Merged   Stage = 0
	Ancestor Stage = 1
	Ours     Stage = 2
	Theirs   Stage = 3
)

var ErrEntryNotFound = errors.New("cacheindex: entry not found")

// Entry is one row of the index: a path at a given stage, with its mode and
// object hash.
type Entry struct {
	Name  string
	Mode  filemode.FileMode
	Hash  hash.Hash
	Stage Stage
}

// Index is an ordered set of entries keyed by (Name, Stage); a clean path
// has exactly one Merged-stage entry, a conflicted one has up to three
// higher-stage entries and no Merged-stage entry.
type Index struct {
	Entries []*Entry
}

func New() *Index {
	return &Index{}
}

// FindOverLength returns the position of the Merged-stage entry for name
// within the first n entries, mirroring the materializer's "look up over the
// original length" rule so appended conflict rows never shadow an earlier
// lookup.
func (i *Index) FindOverLength(name string, n int) int {
	for idx := 0; idx < n && idx < len(i.Entries); idx++ {
		if i.Entries[idx].Name == name && i.Entries[idx].Stage == Merged {
			return idx
		}
	}
	return -1
}

// Entry returns the Merged-stage entry for a path, if any.
func (i *Index) Entry(name string) (*Entry, error) {
	if idx := i.FindOverLength(name, len(i.Entries)); idx >= 0 {
		return i.Entries[idx], nil
	}
	return nil, ErrEntryNotFound
}

// Add appends a Merged-stage entry for a clean path.
func (i *Index) Add(name string, mode filemode.FileMode, oid hash.Hash) {
	i.Entries = append(i.Entries, &Entry{Name: name, Mode: mode, Hash: oid, Stage: Merged})
}

// RemoveAt deletes the entries at the given positions (as returned by
// FindOverLength), which the materializer marks for removal before
// appending higher-stage rows.
func (i *Index) RemoveAt(positions []int) {
	if len(positions) == 0 {
		return
	}
	drop := make(map[int]bool, len(positions))
	for _, p := range positions {
		drop[p] = true
	}
	kept := i.Entries[:0]
	for idx, e := range i.Entries {
		if !drop[idx] {
			kept = append(kept, e)
		}
	}
	i.Entries = kept
}

// Sort restores canonical (Name, Stage) order after materialization appends
// rows out of order.
func (i *Index) Sort() {
	sort.Slice(i.Entries, func(a, b int) bool {
		ea, eb := i.Entries[a], i.Entries[b]
		if ea.Name != eb.Name {
			return ea.Name < eb.Name
		}
		return ea.Stage < eb.Stage
	})
}
