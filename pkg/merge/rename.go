package merge

import "context"

// RenameEdit is one detected rename: a path present on the base side that no
// longer exists under that name on one of the two branches, paired with the
// path it was renamed to.
type RenameEdit struct {
	Side Stage // StageOurs or StageTheirs
	From string
	To   string
}

// RenamePass runs between collection and resolution. A real implementation
// would pair deleted paths against added paths by content similarity (spec.md
// explicitly scopes the scoring algorithm itself out); this package only
// needs somewhere to plug one in, so the pipeline can be exercised and tested
// without one.
type RenamePass interface {
	Detect(ctx context.Context, s *Session) ([]RenameEdit, error)
}

// IdentityRenamePass never detects a rename. It is the default RenamePass,
// matching spec.md's position that rename detection is a pluggable
// collaborator, not part of the core engine.
type IdentityRenamePass struct{}

func (IdentityRenamePass) Detect(_ context.Context, _ *Session) ([]RenameEdit, error) {
	return nil, nil
}

var _ RenamePass = IdentityRenamePass{}
