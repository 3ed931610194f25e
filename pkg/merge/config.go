package merge

import "github.com/sirupsen/logrus"

// DirectoryRenameMode controls how the (out-of-scope) rename pass is allowed
// to fabricate new directories for files renamed out of a renamed directory.
// The engine only threads this value through to a supplied RenamePass; it has
// no effect on IdentityRenamePass.
type DirectoryRenameMode int

const (
	DirectoryRenameConflict DirectoryRenameMode = iota
	DirectoryRenameTrue
	DirectoryRenameFalse
)

// RecursiveVariant selects how the recursive driver combines more than one
// merge base, mirroring the merge-recursive variants documented in spec.md
// §4.6.
type RecursiveVariant int

const (
	RecursiveVariantNormal RecursiveVariant = iota
	RecursiveVariantOurs
	RecursiveVariantTheirs
)

// Config bundles every knob the engine exposes, per spec.md §6. Branch1 and
// Branch2 name the two sides being merged and appear verbatim in conflict
// messages; RenamePass and ContentMerger are the two pluggable collaborators
// the core engine defers to.
type Config struct {
	Branch1 string
	Branch2 string

	RenamePass    RenamePass
	ContentMerger ContentMerger

	DetectDirectoryRenames DirectoryRenameMode
	RenameLimit            int
	RenameScore            int
	ShowRenameProgress     bool

	RecursiveVariant RecursiveVariant

	// ContentMergeLimit caps the size, in bytes, of a blob the
	// ContentMerger will be asked to merge; larger blobs are treated the
	// way a binary file is (kept ours, recorded as a conflict) without
	// ever being read into memory. Zero means no limit.
	ContentMergeLimit int64

	Verbosity int

	// Log receives the engine's Debug (per-path resolution), Info
	// (top-level start/finish) and Warn (recoverable store hiccup) lines.
	// Nil defaults to logrus.StandardLogger(), so embedding callers only
	// need to set this when they want merge output redirected.
	Log logrus.FieldLogger
}

func (c Config) renamePass() RenamePass {
	if c.RenamePass != nil {
		return c.RenamePass
	}
	return IdentityRenamePass{}
}

func (c Config) contentMerger() ContentMerger {
	if c.ContentMerger != nil {
		return c.ContentMerger
	}
	return NoopContentMerger{}
}

func (c Config) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

// DefaultContentMergeLimit is applied by NewConfig when the caller leaves
// ContentMergeLimit at zero. 50 MiB matches the guard documented in
// SPEC_FULL.md for the remote merge service, where an unbounded content merge
// is a denial-of-service surface.
const DefaultContentMergeLimit = 50 << 20

// NewConfig returns a Config with the documented defaults filled in.
func NewConfig(branch1, branch2 string) Config {
	return Config{
		Branch1:           branch1,
		Branch2:           branch2,
		ContentMergeLimit: DefaultContentMergeLimit,
	}
}
