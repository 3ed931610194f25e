package merge_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
	"github.com/threestage/mergetree/pkg/odb"
)

func newBackend() *odb.ODB {
	return odb.New(odb.NewMemoryStorage())
}

type treeNode struct {
	children map[string]*treeNode
	isFile   bool
	content  string
	mode     filemode.FileMode
}

// buildTree writes a tree from a flat path -> content map, creating
// intermediate directories as needed, and returns its hash. An empty map
// yields the empty tree.
func buildTree(t *testing.T, ctx context.Context, b object.Backend, files map[string]string) hash.Hash {
	t.Helper()
	root := &treeNode{children: map[string]*treeNode{}}
	for path, content := range files {
		parts := strings.Split(path, "/")
		cur := root
		for i, p := range parts {
			if i == len(parts)-1 {
				cur.children[p] = &treeNode{isFile: true, content: content, mode: filemode.Regular}
				continue
			}
			child, ok := cur.children[p]
			if !ok {
				child = &treeNode{children: map[string]*treeNode{}}
				cur.children[p] = child
			}
			cur = child
		}
	}
	return writeNode(t, ctx, b, root)
}

// buildTreeExec is like buildTree but marks the given paths executable.
func buildTreeExec(t *testing.T, ctx context.Context, b object.Backend, files map[string]string, executable map[string]bool) hash.Hash {
	t.Helper()
	root := &treeNode{children: map[string]*treeNode{}}
	for path, content := range files {
		parts := strings.Split(path, "/")
		cur := root
		for i, p := range parts {
			if i == len(parts)-1 {
				mode := filemode.Regular
				if executable[path] {
					mode = filemode.Executable
				}
				cur.children[p] = &treeNode{isFile: true, content: content, mode: mode}
				continue
			}
			child, ok := cur.children[p]
			if !ok {
				child = &treeNode{children: map[string]*treeNode{}}
				cur.children[p] = child
			}
			cur = child
		}
	}
	return writeNode(t, ctx, b, root)
}

func writeNode(t *testing.T, ctx context.Context, b object.Backend, n *treeNode) hash.Hash {
	t.Helper()
	var entries []*object.TreeEntry
	for name, c := range n.children {
		if c.isFile {
			h, err := b.WriteBlob(ctx, []byte(c.content))
			require.NoError(t, err)
			entries = append(entries, &object.TreeEntry{Name: name, Mode: c.mode, Hash: h, Size: int64(len(c.content))})
			continue
		}
		h := writeNode(t, ctx, b, c)
		entries = append(entries, &object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}
	tr := object.NewTree(entries)
	h, err := b.WriteTree(ctx, tr)
	require.NoError(t, err)
	return h
}

// flatten reads every blob path out of a tree, recursively, keyed by full
// path, for easy assertions against an expected file map.
func flatten(t *testing.T, ctx context.Context, b object.Backend, oid hash.Hash) map[string]string {
	t.Helper()
	tr, err := b.Tree(ctx, oid)
	require.NoError(t, err)
	out := make(map[string]string)
	reader := b.(*odb.ODB)
	err = object.Walk(ctx, b, tr, "", func(path string, e *object.TreeEntry) error {
		content, err := reader.ReadBlob(ctx, e.Hash)
		if err != nil {
			return err
		}
		out[path] = string(content)
		return nil
	})
	require.NoError(t, err)
	return out
}
