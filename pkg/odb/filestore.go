package odb

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
)

// FileStorage stores loose objects under <root>/objects/<first-2-hex>/<rest>,
// matching the loose-object layout of the reference store so an operator
// migrating object dumps between the two doesn't have to reshape anything.
type FileStorage struct {
	root string
}

func NewFileStorage(root string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("odb: creating object root: %w", err)
	}
	return &FileStorage{root: root}, nil
}

func (f *FileStorage) path(oid hash.Hash) string {
	s := oid.String()
	return filepath.Join(f.root, "objects", s[:2], s[2:])
}

func (f *FileStorage) Open(_ context.Context, oid hash.Hash) (io.ReadCloser, error) {
	file, err := os.Open(f.path(oid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, object.NoSuchObject(oid)
		}
		return nil, err
	}
	return file, nil
}

func (f *FileStorage) Exists(_ context.Context, oid hash.Hash) (bool, error) {
	_, err := os.Stat(f.path(oid))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (f *FileStorage) Put(_ context.Context, oid hash.Hash, content io.Reader) error {
	p := f.path(oid)
	if _, err := os.Stat(p); err == nil {
		return nil // loose objects are immutable and content-addressed
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (f *FileStorage) Close() error { return nil }
