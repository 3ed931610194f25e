package merge

import (
	"context"
	"fmt"

	"github.com/threestage/mergetree/pkg/filemode"
)

// resolve runs the per-entry disposition table of spec.md §4.3 over every
// unresolved entry collected so far. Resolution of one path never depends
// on another's outcome (directory entries are finished later, by the tree
// writer), so unlike collection and tree writing this pass has no ordering
// requirement; a directory/file conflict may append a displaced path mid-
// pass, which is why this ranges over a snapshot of keys rather than the
// live map.
func resolve(ctx context.Context, s *Session, cfg Config) error {
	log := cfg.logger()
	cm := cfg.contentMerger()
	pending := make([]string, 0, len(s.paths))
	for p, e := range s.paths {
		if !e.Merged.Clean {
			pending = append(pending, p)
		}
	}
	for _, p := range pending {
		e := s.paths[p]
		if e.Merged.Clean {
			continue
		}
		isPureDirectory := e.Conflict.DirMask != 0 && e.Conflict.FileMask == 0
		if err := resolveEntry(ctx, s, p, e, cfg, cm); err != nil {
			return err
		}
		if !isPureDirectory {
			log.Debugf("merge: resolved %q clean=%v", p, e.Merged.Clean)
		}
		// Pure directory entries are not conflicts; they are pending
		// finalization by the tree writer, which will promote them to
		// clean once their children are known.
		if !e.Merged.Clean && !isPureDirectory {
			s.conflicted[p] = e
		}
	}
	return nil
}

func resolveEntry(ctx context.Context, s *Session, p string, e *entry, cfg Config, cm ContentMerger) error {
	ci := e.Conflict

	// Step 1: directory bookkeeping.
	if ci.DirMask != 0 {
		if ci.FileMask == 0 {
			// Pure directory: Merged.Result is filled in by the
			// tree writer once this directory's children are
			// known.
			return nil
		}
		return resolveDFConflict(s, p, e, ci)
	}

	// Step 1.5: a plugged-in RenamePass may have rewritten Pathnames and
	// set PathConflict; IdentityRenamePass never does, so this is a
	// no-op for the default pipeline.
	if ci.PathConflict {
		resolvePathConflict(s, p, e, ci)
		return nil
	}

	// Step 2: disposition by mask.
	switch {
	case ci.MatchMask == 3 || ci.MatchMask == 5 || ci.MatchMask == 6:
		resolveTwoOrThreeAgree(e, ci)
		return nil
	case ci.FileMask == 6 || ci.FileMask == 7:
		if distinctTypes(ci) {
			recordTypeClash(s, p, e, ci)
			return nil
		}
		return resolveBothModified(ctx, s, p, e, ci, cfg, cm)
	case ci.FileMask == 3 || ci.FileMask == 5:
		resolveModifyDelete(s, p, e, ci)
		return nil
	case ci.FileMask == 2 || ci.FileMask == 4:
		resolveAddedOnOneSide(e, ci)
		return nil
	case ci.FileMask == 1:
		e.promoteToClean(VersionInfo{}, true)
		return nil
	default:
		return fmt.Errorf("merge: structural invariant violated: unexpected filemask %d at %q", ci.FileMask, p)
	}
}

// resolvePathConflict handles the rename/rename and rename/delete shapes of
// SUPPLEMENT #4: a non-default RenamePass rewrites ci.Pathnames[StageOurs]/
// [StageTheirs] to the path an entry moved to on that side (leaving it ""
// when that side deleted the base path outright) and sets ci.PathConflict.
func resolvePathConflict(s *Session, p string, e *entry, ci *ConflictInfo) {
	ourPath, theirPath := ci.Pathnames[StageOurs], ci.Pathnames[StageTheirs]

	switch {
	case ourPath != "" && theirPath != "" && ourPath != theirPath:
		e.Merged.Result = ci.Stages[StageOurs]
		e.Merged.Clean = false
		s.appendMessage(p, fmt.Sprintf(
			"CONFLICT (rename/rename): %s renamed to %s in %s and to %s in %s",
			p, ourPath, s.Branch1, theirPath, s.Branch2))
	case ourPath == "":
		e.Merged.Result = ci.Stages[StageTheirs]
		e.Merged.IsNull = e.Merged.Result.IsAbsent()
		e.Merged.Clean = false
		s.appendMessage(p, fmt.Sprintf(
			"CONFLICT (rename/delete): %s deleted in %s and renamed to %s in %s",
			p, s.Branch1, theirPath, s.Branch2))
	case theirPath == "":
		e.Merged.Result = ci.Stages[StageOurs]
		e.Merged.IsNull = e.Merged.Result.IsAbsent()
		e.Merged.Clean = false
		s.appendMessage(p, fmt.Sprintf(
			"CONFLICT (rename/delete): %s deleted in %s and renamed to %s in %s",
			p, s.Branch2, ourPath, s.Branch1))
	default:
		// Both sides kept the path under the same new name: nothing
		// to report here, the rename pass itself already folded the
		// two entries together.
		e.promoteToClean(ci.Stages[StageOurs], false)
	}
}

// resolveTwoOrThreeAgree is disposition A: match_mask in {3,5,6}.
func resolveTwoOrThreeAgree(e *entry, ci *ConflictInfo) {
	if ci.MatchMask == 6 {
		// Ours and theirs agree with each other, base differs:
		// adopt ours.
		v := ci.Stages[StageOurs]
		e.promoteToClean(v, v.IsAbsent())
		return
	}
	other := otherSide(ci.MatchMask)
	v := ci.Stages[other]
	e.promoteToClean(v, v.Mode == filemode.Empty)
}

// otherSide returns the unique stage not part of a 2-of-3 agreement: the
// side whose bit is set in othermask = 7 &^ matchMask.
func otherSide(matchMask uint8) Stage {
	othermask := 7 &^ matchMask
	if othermask == 4 {
		return StageTheirs
	}
	return StageOurs
}

func distinctTypes(ci *ConflictInfo) bool {
	ours := ci.Stages[StageOurs]
	theirs := ci.Stages[StageTheirs]
	if ours.IsAbsent() || theirs.IsAbsent() {
		return false
	}
	return ours.Mode.Base() != theirs.Mode.Base() && ours.Hash == theirs.Hash
}

func recordTypeClash(s *Session, p string, e *entry, ci *ConflictInfo) {
	e.Merged.Result = ci.Stages[StageOurs]
	e.Merged.IsNull = false
	e.Merged.Clean = false
	s.appendMessage(p, fmt.Sprintf("CONFLICT (distinct types): %s had different types on each side", p))
}

func resolveBothModified(ctx context.Context, s *Session, p string, e *entry, ci *ConflictInfo, cfg Config, cm ContentMerger) error {
	base := ci.Stages[StageBase]
	if !base.IsAbsent() && !base.Mode.IsFile() {
		// base is a symlink or submodule, not mergeable content:
		// keep ours in the tree and record the conflict.
		e.Merged.Result = ci.Stages[StageOurs]
		e.Merged.Clean = false
		s.appendMessage(p, fmt.Sprintf("CONFLICT (content): Merge conflict in %s", p))
		return nil
	}
	if reason, skip := skipContentMerge(cfg, ci); skip {
		e.Merged.Result = ci.Stages[StageOurs]
		e.Merged.Clean = false
		s.appendMessage(p, fmt.Sprintf("CONFLICT (content): Merge conflict in %s (%s, content merge skipped)", p, reason))
		return nil
	}
	result, err := cm.Merge(ctx, MergeInput{
		Path:   p,
		Base:   base,
		Ours:   ci.Stages[StageOurs],
		Theirs: ci.Stages[StageTheirs],
	})
	if err != nil {
		return fmt.Errorf("merge: content merge failed for %q: %w", p, err)
	}
	e.Merged.Result = result.Result
	e.Merged.IsNull = false
	e.Merged.Clean = result.Clean
	if !result.Clean {
		s.appendMessage(p, fmt.Sprintf("CONFLICT (content): Merge conflict in %s", p))
	}
	return nil
}

// skipContentMerge reports whether a both-modified path should bypass the
// ContentMerger entirely, per SUPPLEMENT #3: blobs split into fragments by
// the store (LFS-style, never fully materialized) and blobs above
// Config.ContentMergeLimit are treated the way a binary file is, without
// ever being read into memory.
func skipContentMerge(cfg Config, ci *ConflictInfo) (reason string, skip bool) {
	ours, theirs := ci.Stages[StageOurs], ci.Stages[StageTheirs]
	if ours.Mode.IsFragments() || theirs.Mode.IsFragments() {
		return "fragmented blob", true
	}
	if cfg.ContentMergeLimit <= 0 {
		return "", false
	}
	if ours.Size > cfg.ContentMergeLimit || theirs.Size > cfg.ContentMergeLimit || ci.Stages[StageBase].Size > cfg.ContentMergeLimit {
		return "blob exceeds content-merge limit", true
	}
	return "", false
}

func resolveModifyDelete(s *Session, p string, e *entry, ci *ConflictInfo) {
	presentSide := StageOurs
	deletingBranch, modifyingBranch := s.Branch2, s.Branch1
	if ci.FileMask&2 == 0 {
		presentSide = StageTheirs
		deletingBranch, modifyingBranch = s.Branch1, s.Branch2
	}

	result := ci.Stages[presentSide]
	if s.CallDepth > 0 {
		result = ci.Stages[StageBase]
	}
	e.Merged.Result = result
	e.Merged.IsNull = result.IsAbsent()
	e.Merged.Clean = false
	s.appendMessage(p, fmt.Sprintf(
		"CONFLICT (modify/delete): %s deleted in %s and modified in %s. Version %s of %s left in tree.",
		p, deletingBranch, modifyingBranch, modifyingBranch, p))
}

func resolveAddedOnOneSide(e *entry, ci *ConflictInfo) {
	side := StageOurs
	if ci.FileMask&2 == 0 {
		side = StageTheirs
	}
	v := ci.Stages[side]
	e.Merged.Result = v
	e.Merged.IsNull = v.IsAbsent()
	e.Merged.Clean = !ci.DFConflict
}

// resolveDFConflict applies the directory/file placement policy recorded in
// SPEC_FULL.md: the directory keeps the bare path, the file side is
// displaced to "<path>~<branch>".
func resolveDFConflict(s *Session, p string, e *entry, ci *ConflictInfo) error {
	fileSide := StageOurs
	branch := s.Branch1
	if ci.FileMask&2 == 0 {
		fileSide = StageTheirs
		branch = s.Branch2
	}
	displaced := fmt.Sprintf("%s~%s", p, flattenBranchName(branch))
	dirName, baseOffset := splitPath(displaced)
	v := ci.Stages[fileSide]
	s.paths[displaced] = &entry{Merged: MergedInfo{
		Result:         v,
		Clean:          true,
		BasenameOffset: baseOffset,
		DirectoryName:  s.intern(dirName),
	}}
	e.Merged.Clean = false
	s.appendMessage(p, fmt.Sprintf(
		"CONFLICT (file/directory): there is a directory with name %q in %s, adding as %q instead",
		p, branch, displaced))
	return nil
}

func flattenBranchName(b string) string {
	out := make([]rune, 0, len(b))
	for _, r := range b {
		if r == '/' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
