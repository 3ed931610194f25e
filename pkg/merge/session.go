// Package merge implements the three-way tree-merge engine: a synchronized
// traversal of a base tree and two side trees that produces a merged tree
// object plus a set of conflicts, and a recursive driver that reduces
// multiple merge bases to one before running the core pipeline. It is
// modeled closely on git's merge-ort machinery, adapted to operate over the
// object model in package object.
package merge

import (
	"sort"
	"strings"

	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
)

// Stage indexes the three sides a ConflictInfo tracks a version for.
type Stage int

const (
	StageBase Stage = iota
	StageOurs
	StageTheirs
	stageCount = 3
)

// VersionInfo is a file mode paired with its content hash; a zero mode and
// null hash together mean the path is absent on that side.
type VersionInfo struct {
	Mode filemode.FileMode
	Hash hash.Hash
	// Size is the blob's size in bytes as recorded by the tree entry,
	// captured at collection time so the resolver can apply
	// Config.ContentMergeLimit without a second store round-trip.
	Size int64
}

func (v VersionInfo) IsAbsent() bool {
	return v.Mode == filemode.Empty && v.Hash.IsZero()
}

func (v VersionInfo) Equal(o VersionInfo) bool {
	return v.Mode == o.Mode && v.Hash == o.Hash
}

// MergedInfo is the final, resolved version of a path — the only part of an
// entry the tree writer ever reads.
type MergedInfo struct {
	Result VersionInfo
	// IsNull means this path is omitted from the emitted tree.
	IsNull bool
	// Clean means no conflict remains for this path.
	Clean bool
	// IsDir records whether this path was seen as a directory on any
	// side (dirmask != 0). It is set at collection time and survives
	// promotion to clean, since the tree writer needs it for entries
	// whose ConflictInfo has already been discarded.
	IsDir bool
	// BasenameOffset is the byte offset into the full path where the
	// basename starts (0 when the path has no '/').
	BasenameOffset int
	// DirectoryName is the interned full path of the containing
	// directory ("" at top level). Two entries with equal DirectoryName
	// strings always share the identical *string from Session's
	// interning table, so the tree writer can compare directory
	// identity by pointer rather than string equality.
	DirectoryName *string
}

func (m *MergedInfo) basename(fullPath string) string {
	return fullPath[m.BasenameOffset:]
}

// ConflictInfo is the full per-path state kept while a path is unresolved;
// once an entry's Merged.Clean becomes true, a ConflictInfo is discarded —
// express the tagged-sum invariant as a nilled pointer, not a stale struct a
// caller could accidentally still read.
type ConflictInfo struct {
	Merged MergedInfo

	Stages    [stageCount]VersionInfo
	Pathnames [stageCount]string

	// DFConflict: a directory on one side, a file on another, at the
	// same path.
	DFConflict bool
	// PathConflict: a non-content conflict such as rename/rename or
	// rename/delete (never set by the default identity rename pass).
	PathConflict bool

	FileMask  uint8
	DirMask   uint8
	MatchMask uint8
}

// entry is either Clean(MergedInfo) or Unresolved(ConflictInfo); Conflict is
// nil exactly when Merged.Clean is true.
type entry struct {
	Merged   MergedInfo
	Conflict *ConflictInfo
}

func (e *entry) promoteToClean(result VersionInfo, isNull bool) {
	e.Merged.Result = result
	e.Merged.IsNull = isNull
	e.Merged.Clean = true
	e.Conflict = nil
}

// Session is the mutable state of one top-level merge invocation: every
// path seen in any of the three trees, the subset still unresolved after
// the resolver runs, and accumulated human-readable messages.
type Session struct {
	// paths owns its key strings; DirectoryName handles above always
	// point into the matching entry in internTable, giving pointer-
	// identity "same directory" checks.
	paths map[string]*entry

	// conflicted aliases a strict subset of paths; it owns nothing.
	conflicted map[string]*entry

	internTable map[string]*string

	output map[string]*strings.Builder

	// AncestorLabel records how the recursive driver describes the base
	// it synthesized, for message rendering ("empty tree", "merged
	// common ancestors", or an abbreviated hash).
	AncestorLabel string

	Branch1, Branch2 string

	CallDepth int
}

func newSession(branch1, branch2 string) *Session {
	s := &Session{Branch1: branch1, Branch2: branch2}
	s.partialReset()
	s.output = make(map[string]*strings.Builder)
	return s
}

// intern returns the session's single canonical *string for p, allocating
// one the first time p is seen. Every DirectoryName handle must come from
// here, never from a freshly sliced or concatenated string.
func (s *Session) intern(p string) *string {
	if ptr, ok := s.internTable[p]; ok {
		return ptr
	}
	cp := p
	s.internTable[p] = &cp
	return &cp
}

// partialReset clears paths/conflicted between ancestor-reduction steps in
// the recursive driver, keeping output (messages accumulate across the
// whole top-level call) and the session object itself.
func (s *Session) partialReset() {
	s.paths = make(map[string]*entry)
	s.conflicted = make(map[string]*entry)
	s.internTable = make(map[string]*string)
}

func (s *Session) appendMessage(path, msg string) {
	b, ok := s.output[path]
	if !ok {
		b = &strings.Builder{}
		s.output[path] = b
	}
	b.WriteString(msg)
	b.WriteString("\n")
}

// ConflictedPaths returns the paths still unresolved after Resolve, in
// sorted order, for callers (CLI output, index materialization diagnostics)
// that only need the path set rather than the full ConflictInfo.
func (s *Session) ConflictedPaths() []string {
	keys := make([]string, 0, len(s.conflicted))
	for k := range s.conflicted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Messages returns accumulated per-path messages in sorted path order.
func (s *Session) Messages() []string {
	keys := make([]string, 0, len(s.output))
	for k := range s.output {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, s.output[k].String())
	}
	return msgs
}
