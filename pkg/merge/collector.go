package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/threestage/mergetree/internal/walker"
	"github.com/threestage/mergetree/pkg/object"
)

// collect drives the synchronized three-tree walk and populates
// session.paths with one entry per path seen on any side, per spec.md §4.1.
func collect(ctx context.Context, backend object.Backend, s *Session, base, ours, theirs *object.Tree) error {
	visit := func(ctx context.Context, fullPath string, mask, dirmask, excluded uint8, entries [walker.Sides]*object.TreeEntry) (bool, error) {
		return collectOne(s, fullPath, mask, dirmask, excluded, entries)
	}
	return walker.Walk(ctx, backend, base, ours, theirs, visit)
}

func collectOne(s *Session, fullPath string, mask, dirmask, excluded uint8, entries [walker.Sides]*object.TreeEntry) (bool, error) {
	if mask < 1 || mask > 7 {
		return false, fmt.Errorf("merge: structural invariant violated: mask %d out of range at %q", mask, fullPath)
	}
	for i := 0; i < stageCount; i++ {
		present := mask&(1<<uint(i)) != 0
		if !present && entries[i] != nil {
			return false, fmt.Errorf("merge: structural invariant violated: absent side %d has an entry at %q", i, fullPath)
		}
	}

	filemask := mask &^ dirmask
	matchMask := computeMatchMask(entries)
	matchMask = neutralizeExcluded(matchMask, excluded, entries)

	var stages [stageCount]VersionInfo
	var pathnames [stageCount]string
	for i := 0; i < stageCount; i++ {
		if entries[i] != nil {
			stages[i] = VersionInfo{Mode: entries[i].Mode, Hash: entries[i].Hash, Size: entries[i].Size}
			pathnames[i] = fullPath
		}
	}

	dirName, baseOffset := splitPath(fullPath)
	dirHandle := s.intern(dirName)

	if matchMask == 7 {
		// All three sides agree (or the disagreeing sides were all
		// excluded, see neutralizeExcluded): resolve immediately and
		// tell the walker not to recurse into this subtree. Picking
		// the first present stage rather than always StageBase
		// matters when exclusion neutralized a mask whose base side
		// itself was the one blocked by an ancestor conflict.
		result := stages[StageBase]
		for i := 0; i < stageCount; i++ {
			if !stages[i].IsAbsent() {
				result = stages[i]
				break
			}
		}
		isNull := dirmask != 0 || filemask == 0
		e := &entry{Merged: MergedInfo{
			Result:         result,
			IsNull:         isNull,
			Clean:          true,
			IsDir:          dirmask != 0,
			BasenameOffset: baseOffset,
			DirectoryName:  dirHandle,
		}}
		s.paths[*s.intern(fullPath)] = e
		return false, nil
	}

	ci := &ConflictInfo{
		Stages:     stages,
		Pathnames:  pathnames,
		DFConflict: filemask != 0 && dirmask != 0,
		FileMask:   filemask,
		DirMask:    dirmask,
		MatchMask:  matchMask,
		Merged: MergedInfo{
			// Corrected by the tree writer once the directory's
			// children have all been processed.
			IsNull:         dirmask != 0,
			IsDir:          dirmask != 0,
			BasenameOffset: baseOffset,
			DirectoryName:  dirHandle,
		},
	}
	s.paths[*s.intern(fullPath)] = &entry{Conflict: ci}

	// Recurse whenever any side is a directory here; the collector
	// itself only short-circuits recursion in the all-agree case above.
	return dirmask != 0, nil
}

// computeMatchMask compares (mode, hash) pairwise across base/ours/theirs.
// Only sides actually present participate; an absent side never "matches"
// a present one.
func computeMatchMask(entries [walker.Sides]*object.TreeEntry) uint8 {
	eq := func(a, b *object.TreeEntry) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Mode == b.Mode && a.Hash == b.Hash
	}
	baseOurs := eq(entries[walker.Base], entries[walker.Ours])
	baseTheirs := eq(entries[walker.Base], entries[walker.Theirs])
	oursTheirs := eq(entries[walker.Ours], entries[walker.Theirs])

	switch {
	case baseOurs && baseTheirs && oursTheirs:
		return 7
	case baseOurs:
		return 3
	case baseTheirs:
		return 5
	case oursTheirs:
		return 6
	default:
		return 0
	}
}

// neutralizeExcluded adjusts matchMask so a side blocked by an ancestor
// directory/file conflict (see walker.Visit's excluded parameter) never
// registers as having "deleted" or "conflicted with" content it structurally
// never had the chance to see. Only the sides still in play are compared;
// when they agree, the path resolves as cleanly as if all three had agreed.
// When the remaining sides genuinely disagree, the blocked side contributes
// nothing new to that disagreement and matchMask is left as computed.
func neutralizeExcluded(matchMask, excluded uint8, entries [walker.Sides]*object.TreeEntry) uint8 {
	if excluded == 0 {
		return matchMask
	}
	var remaining []int
	for i := 0; i < stageCount; i++ {
		if excluded&(1<<uint(i)) == 0 {
			remaining = append(remaining, i)
		}
	}
	switch len(remaining) {
	case 0:
		return matchMask
	case 1:
		return 7
	default:
		a, b := remaining[0], remaining[1]
		ea, eb := entries[a], entries[b]
		if ea == nil && eb == nil {
			return 7
		}
		if ea != nil && eb != nil && ea.Mode == eb.Mode && ea.Hash == eb.Hash {
			return 7
		}
		return matchMask
	}
}

// splitPath returns the containing directory and the byte offset of the
// basename within fullPath.
func splitPath(fullPath string) (string, int) {
	if idx := strings.LastIndexByte(fullPath, '/'); idx >= 0 {
		return fullPath[:idx], idx + 1
	}
	return "", 0
}
