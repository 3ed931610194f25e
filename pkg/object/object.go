// Package object defines the small, content-addressed object model the
// merge engine operates on: blobs, trees and commits, plus the Backend
// interface used to resolve a hash into one of them. It is a trimmed
// adaptation of a larger VCS object model, kept to exactly what a tree-merge
// needs.
package object

import (
	"context"
	"errors"
	"fmt"

	"github.com/threestage/mergetree/pkg/hash"
)

// ObjectType distinguishes the three object kinds the engine reads and
// writes; a fourth, unknown, guards against malformed storage.
type ObjectType int

const (
	UnknownObject ObjectType = iota
	BlobObject
	TreeObject
	CommitObject
)

func (t ObjectType) String() string {
	switch t {
	case BlobObject:
		return "blob"
	case TreeObject:
		return "tree"
	case CommitObject:
		return "commit"
	default:
		return "unknown"
	}
}

var ErrUnsupportedObject = errors.New("object: unsupported object type")

type errNoSuchObject struct {
	oid hash.Hash
}

func (e *errNoSuchObject) Error() string {
	return fmt.Sprintf("object: no such object %s", e.oid)
}

// NoSuchObject builds the sentinel error a Backend returns for a missing
// hash; IsNoSuchObject recognizes it regardless of wrapping.
func NoSuchObject(oid hash.Hash) error {
	return &errNoSuchObject{oid: oid}
}

func IsNoSuchObject(err error) bool {
	if err == nil {
		return false
	}
	var e *errNoSuchObject
	return errors.As(err, &e)
}

// Backend resolves hashes to the three object kinds the merge engine reads,
// and accepts newly built trees and commits for writing. Implementations
// live in package odb; tests commonly use an in-memory one.
type Backend interface {
	Tree(ctx context.Context, oid hash.Hash) (*Tree, error)
	Commit(ctx context.Context, oid hash.Hash) (*Commit, error)
	Blob(ctx context.Context, oid hash.Hash) (*Blob, error)
	WriteTree(ctx context.Context, t *Tree) (hash.Hash, error)
	WriteCommit(ctx context.Context, c *Commit) (hash.Hash, error)
	WriteBlob(ctx context.Context, content []byte) (hash.Hash, error)
}
