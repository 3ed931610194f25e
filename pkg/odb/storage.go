// Package odb implements the content-addressed object store the merge
// engine reads trees and commits from and writes merged trees back to. It
// is adapted from a larger VCS's pluggable storage layer, trimmed to the
// Storage/WritableStorage split and the three concrete backends a merge
// service needs: local disk, S3, and an in-memory one for tests.
package odb

import (
	"context"
	"io"

	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
)

// Storage reads raw, compressed object bytes by hash. It says nothing about
// object kind; ODB decodes the bytes once it knows what it asked for.
type Storage interface {
	Open(ctx context.Context, oid hash.Hash) (io.ReadCloser, error)
	Exists(ctx context.Context, oid hash.Hash) (bool, error)
	Close() error
}

// WritableStorage additionally accepts new object content, returning the
// hash it was stored under.
type WritableStorage interface {
	Storage
	Put(ctx context.Context, oid hash.Hash, content io.Reader) error
}

// MultiStorage composes several read-only backends, trying each in turn and
// skipping a backend's "not found" the way a multi-tier cache-then-origin
// setup does.
func MultiStorage(impls ...Storage) Storage {
	return &multiStorage{impls: impls}
}

type multiStorage struct {
	impls []Storage
}

func (m *multiStorage) Open(ctx context.Context, oid hash.Hash) (io.ReadCloser, error) {
	for _, s := range m.impls {
		r, err := s.Open(ctx, oid)
		if err != nil {
			if object.IsNoSuchObject(err) {
				continue
			}
			return nil, err
		}
		return r, nil
	}
	return nil, object.NoSuchObject(oid)
}

func (m *multiStorage) Exists(ctx context.Context, oid hash.Hash) (bool, error) {
	for _, s := range m.impls {
		ok, err := s.Exists(ctx, oid)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *multiStorage) Close() error {
	for _, s := range m.impls {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}
