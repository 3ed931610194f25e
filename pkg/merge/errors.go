package merge

import (
	"errors"
	"fmt"
)

// invariantError marks a structural invariant violation: the walker handed
// back an impossible mask, the tree writer's offsets stack underflowed, and
// similar conditions spec.md §7 calls "these should never occur". It is
// never expected to surface outside of a bug in this package, so it is kept
// distinct from storeError and collectError rather than given its own
// recovery path.
type invariantError struct {
	msg string
}

func (e *invariantError) Error() string { return e.msg }

func newInvariantError(format string, args ...any) error {
	return &invariantError{msg: fmt.Sprintf(format, args...)}
}

// IsInvariantViolation reports whether err is a structural invariant
// violation raised by this package.
func IsInvariantViolation(err error) bool {
	var e *invariantError
	return errors.As(err, &e)
}

// StructuralError wraps a panic recovered at a top-level entry point
// (Merge, RecursiveMerge). It is the last-resort net for an invariant
// violation severe enough to panic rather than thread back as an error —
// a bug in this package, never caller input — so it never escapes as a
// raw panic across the package boundary.
type StructuralError struct {
	msg   string
	cause any
}

func (e *StructuralError) Error() string { return e.msg }

func (e *StructuralError) Unwrap() error {
	if err, ok := e.cause.(error); ok {
		return err
	}
	return nil
}

func newStructuralError(r any) *StructuralError {
	if err, ok := r.(error); ok {
		return &StructuralError{msg: fmt.Sprintf("merge: structural error recovered: %v", err), cause: err}
	}
	return &StructuralError{msg: fmt.Sprintf("merge: structural error recovered: %v", r), cause: r}
}

// IsStructuralError reports whether err is a panic recovered by Merge or
// RecursiveMerge.
func IsStructuralError(err error) bool {
	var e *StructuralError
	return errors.As(err, &e)
}

// storeError wraps a failure reading or writing an object from the backing
// store (tree, blob, or commit).
type storeError struct {
	op  string
	oid string
	err error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("merge: %s %s: %v", e.op, e.oid, e.err)
}

func (e *storeError) Unwrap() error { return e.err }

func newStoreError(op, oid string, err error) error {
	return &storeError{op: op, oid: oid, err: err}
}

// IsStoreFailure reports whether err originated from the object store.
func IsStoreFailure(err error) bool {
	var e *storeError
	return errors.As(err, &e)
}

// collectError is the "collecting merge info failed for trees ..."
// diagnostic of spec.md §7, raised when the synchronized three-tree walk
// itself fails (as opposed to a structural invariant inside one visit).
type collectError struct {
	base, ours, theirs string
	err                error
}

func (e *collectError) Error() string {
	return fmt.Sprintf("collecting merge info failed for trees %s, %s, %s: %v", e.base, e.ours, e.theirs, e.err)
}

func (e *collectError) Unwrap() error { return e.err }

// IsCollectFailure reports whether err is a collector propagation failure.
func IsCollectFailure(err error) bool {
	var e *collectError
	return errors.As(err, &e)
}
