package merge

import (
	"context"

	"github.com/threestage/mergetree/pkg/filemode"
)

// MergeInput is the (base, ours, theirs) triple a ContentMerger is asked to
// combine for one path; Base may be the absent VersionInfo when both sides
// added the same path independently.
type MergeInput struct {
	Path   string
	Base   VersionInfo
	Ours   VersionInfo
	Theirs VersionInfo
}

// MergeOutput is what a ContentMerger hands back: the version to place in
// the tree, and whether it merged cleanly.
type MergeOutput struct {
	Result VersionInfo
	Clean  bool
}

// ContentMerger is the external collaborator spec.md §1 calls out as out of
// scope: line-level three-way text merging. The engine only needs its
// contract; callers needing real diff3-style merging supply their own.
type ContentMerger interface {
	Merge(ctx context.Context, in MergeInput) (MergeOutput, error)
}

// NoopContentMerger is the default ContentMerger: it never merges, always
// leaving ours in the tree and reporting a conflict, which is the
// documented fallback behavior of resolveBothModified's "collaborator
// deferred" path in spec.md §4.3 case C.
type NoopContentMerger struct{}

func (NoopContentMerger) Merge(_ context.Context, in MergeInput) (MergeOutput, error) {
	mode := in.Ours.Mode
	if mode == filemode.Empty {
		mode = in.Theirs.Mode
	}
	return MergeOutput{Result: VersionInfo{Mode: mode, Hash: in.Ours.Hash}, Clean: false}, nil
}
