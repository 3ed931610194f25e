package merge

import (
	"github.com/threestage/mergetree/pkg/cacheindex"
)

// MaterializeIndex implements spec.md §4.5: it replaces the working-tree
// index's tentative stage-0 entry for every still-conflicted path with one
// stage 1-3 entry per side that had a version, leaving clean paths
// untouched.
//
// idx is expected to already hold the ordinary stage-0 checkout of one side
// (normally ours); MaterializeIndex only touches paths present in
// s.conflicted.
func MaterializeIndex(idx *cacheindex.Index, s *Session) error {
	originalLen := len(idx.Entries)
	var toRemove []int

	for p, e := range s.conflicted {
		ci := e.Conflict
		if ci == nil {
			continue
		}

		pos := idx.FindOverLength(p, originalLen)
		if pos < 0 {
			if ci.FileMask != 1 {
				return newInvariantError("merge: structural invariant violated: conflicted path %q missing from index with filemask %d", p, ci.FileMask)
			}
		} else {
			toRemove = append(toRemove, pos)
		}

		for side := 0; side < stageCount; side++ {
			if ci.FileMask&(1<<uint(side)) == 0 {
				continue
			}
			v := ci.Stages[side]
			idx.Entries = append(idx.Entries, &cacheindex.Entry{
				Name:  p,
				Mode:  v.Mode,
				Hash:  v.Hash,
				Stage: cacheindex.Stage(side + 1),
			})
		}
	}

	idx.RemoveAt(toRemove)
	idx.Sort()
	return nil
}
