package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/threestage/mergetree/internal/progress"
	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
)

// progressThreshold is the path count above which tree emission reports
// progress; below it, building the bar costs more than it's worth.
const progressThreshold = 5000

// sortedPaths returns every path in s.paths ordered so that, read forward,
// a directory's own entry precedes everything nested under it, and within
// one directory files and subdirectories interleave in canonical tree
// order. Read in reverse (as writeTrees does), a directory is therefore
// only complete once every path that sorts after it has been flushed.
func sortedPaths(s *Session) []string {
	paths := make([]string, 0, len(s.paths))
	for p := range s.paths {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		return pathSortKey(s, paths[i]) < pathSortKey(s, paths[j])
	})
	return paths
}

func pathSortKey(s *Session, p string) string {
	if s.paths[p].Merged.IsDir {
		return p + "/"
	}
	return p
}

type directoryFrame struct {
	name  string
	start int // index into versions where this directory's children begin
}

// namedEntry is one pending (basename, *MergedInfo) row waiting to be
// flushed into its parent tree.
type namedEntry struct {
	basename string
	info     *MergedInfo
	mode     filemode.FileMode
}

// writeTrees implements spec.md §4.4: it walks s.paths in reverse sorted
// order, maintaining a flat "versions" buffer of not-yet-flushed children
// and an "offsets" stack of directories currently open, emitting a tree
// object each time a directory's children are all accounted for. It
// returns the root tree's hash.
func writeTrees(ctx context.Context, backend object.Backend, s *Session, cfg Config) (hash.Hash, error) {
	paths := sortedPaths(s)

	var versions []namedEntry
	var offsets []directoryFrame
	var lastDirectory *string
	var lastDirectoryLen int

	flush := func(dirPath string, start int) (hash.Hash, error) {
		items := versions[start:]
		return emitSubtree(ctx, backend, items)
	}

	reporter := progress.NewReporter(cfg.ShowRenameProgress && len(paths) > progressThreshold)
	bar := reporter.Stage("Writing merged tree", len(paths))
	defer reporter.Wait()

	for i := len(paths) - 1; i >= 0; i-- {
		bar.Increment(1)
		p := paths[i]
		e := s.paths[p]
		d := e.Merged.DirectoryName

		samePointer := lastDirectory != nil && d == lastDirectory
		if !samePointer {
			descending := lastDirectory == nil || isStrictPrefix(*d, *lastDirectory, lastDirectoryLen)
			if descending {
				offsets = append(offsets, directoryFrame{name: *d, start: len(versions)})
				lastDirectory = d
				lastDirectoryLen = len(*d)
			} else {
				if len(offsets) == 0 {
					return hash.Zero, fmt.Errorf("merge: structural invariant violated: tree writer offsets underflow at %q", p)
				}
				top := offsets[len(offsets)-1]
				dirEntry, ok := s.paths[top.name]
				if !ok {
					return hash.Zero, fmt.Errorf("merge: structural invariant violated: missing directory entry %q", top.name)
				}
				if top.start == len(versions) {
					dirEntry.Merged.IsNull = true
				} else {
					h, err := flush(top.name, top.start)
					if err != nil {
						return hash.Zero, err
					}
					dirEntry.promoteToClean(VersionInfo{Mode: filemode.Dir, Hash: h}, false)
				}
				offsets = offsets[:len(offsets)-1]
				versions = versions[:top.start]

				if len(offsets) == 0 || offsets[len(offsets)-1].name != *d {
					offsets = append(offsets, directoryFrame{name: *d, start: len(versions)})
				}
				lastDirectory = d
				lastDirectoryLen = len(*d)
			}
		}

		if e.Merged.IsNull {
			continue
		}
		versions = append(versions, namedEntry{
			basename: e.Merged.basename(p),
			info:     &e.Merged,
			mode:     entryWriteMode(e.Merged),
		})
	}

	if len(offsets) != 1 || offsets[0].start != 0 {
		return hash.Zero, fmt.Errorf("merge: structural invariant violated: tree writer finished with %d open directories", len(offsets))
	}
	bar.Done()
	return flush(offsets[0].name, 0)
}

func entryWriteMode(m MergedInfo) filemode.FileMode {
	if m.IsDir {
		return filemode.Dir
	}
	return m.Result.Mode
}

// isStrictPrefix reports whether prefix[:prefixLen] is a proper, shorter
// byte prefix of s — the "descending into a new, strictly deeper directory"
// test from spec.md §4.4 step 2.
func isStrictPrefix(s, prefix string, prefixLen int) bool {
	if prefixLen >= len(s) {
		return false
	}
	return strings.HasPrefix(s, prefix[:prefixLen])
}

// emitSubtree sorts items by canonical tree order and writes them as a new
// tree object.
func emitSubtree(ctx context.Context, backend object.Backend, items []namedEntry) (hash.Hash, error) {
	entries := make([]*object.TreeEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, &object.TreeEntry{
			Name: it.basename,
			Mode: it.mode,
			Hash: it.info.Result.Hash,
			Size: 0,
		})
	}
	t := object.NewTree(entries)
	return backend.WriteTree(ctx, t)
}
