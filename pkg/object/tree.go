package object

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
)

// treeMagic tags the encoded form of a Tree so Decode can reject truncated
// or foreign input before it walks off the end of the buffer.
var treeMagic = [4]byte{'M', 'T', 0x00, 0x01}

// TreeEntry is one named child of a Tree: either a subtree (Mode has the
// Dir bit) or a file-like blob.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash hash.Hash
	Size int64
}

func (e *TreeEntry) IsDir() bool {
	return e.Mode.Base() == filemode.Dir
}

func (e *TreeEntry) Equal(o *TreeEntry) bool {
	if (e == nil) != (o == nil) {
		return false
	}
	if e == nil {
		return true
	}
	return e.Name == o.Name && e.Mode == o.Mode && e.Hash == o.Hash
}

// Tree is an ordered, named set of entries, encoded and hashed the same way
// regardless of how it was assembled (from the store, or freshly written by
// the tree writer).
type Tree struct {
	Entries []*TreeEntry

	byName map[string]*TreeEntry
}

func NewTree(entries []*TreeEntry) *Tree {
	sort.Sort(SubtreeOrder(entries))
	return &Tree{Entries: entries}
}

// SubtreeOrder sorts entries the way a tree must be encoded: byte order over
// names, with directory names compared as if terminated by '/' rather than
// NUL, so "foo" sorts after "foo.go" but before "foo/bar". The tree writer
// depends on this exact order to make subtree hashes reproducible.
type SubtreeOrder []*TreeEntry

func (s SubtreeOrder) Len() int      { return len(s) }
func (s SubtreeOrder) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s SubtreeOrder) Less(i, j int) bool {
	return s.sortKey(i) < s.sortKey(j)
}

func (s SubtreeOrder) sortKey(i int) string {
	e := s[i]
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name + "\x00"
}

func (t *Tree) buildIndex() {
	if t.byName != nil {
		return
	}
	t.byName = make(map[string]*TreeEntry, len(t.Entries))
	for _, e := range t.Entries {
		t.byName[e.Name] = e
	}
}

func (t *Tree) Entry(name string) (*TreeEntry, bool) {
	t.buildIndex()
	e, ok := t.byName[name]
	return e, ok
}

// Equal compares trees by content, matching Backend.WriteTree's hash
// equivalence without requiring either side to already be stored.
func (t *Tree) Equal(o *Tree) bool {
	if (t == nil) != (o == nil) {
		return false
	}
	if t == nil {
		return true
	}
	if len(t.Entries) != len(o.Entries) {
		return false
	}
	for i := range t.Entries {
		if !t.Entries[i].Equal(o.Entries[i]) {
			return false
		}
	}
	return true
}

// Encode writes the canonical wire form used both to hash a tree and to
// persist it: a magic header followed by "<octal-mode> <size> <name>\0<hash>"
// per entry, in SubtreeOrder.
func (t *Tree) Encode(w io.Writer) error {
	if _, err := w.Write(treeMagic[:]); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if _, err := fmt.Fprintf(w, "%o %d %s", e.Mode, e.Size, e.Name); err != nil {
			return err
		}
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
		if _, err := w.Write(e.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func DecodeTree(r io.Reader) (*Tree, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("object: truncated tree: %w", err)
	}
	if magic != treeMagic {
		return nil, fmt.Errorf("object: not a tree object")
	}
	var entries []*TreeEntry
	for {
		modeStr, err := br.ReadString(' ')
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		mode, err := filemode.New(modeStr[:len(modeStr)-1])
		if err != nil {
			return nil, err
		}
		sizeStr, err := br.ReadString(' ')
		if err != nil {
			return nil, fmt.Errorf("object: truncated tree entry size: %w", err)
		}
		size, err := strconv.ParseInt(sizeStr[:len(sizeStr)-1], 10, 64)
		if err != nil {
			return nil, err
		}
		name, err := br.ReadString(0)
		if err != nil {
			return nil, fmt.Errorf("object: truncated tree entry name: %w", err)
		}
		var h hash.Hash
		if _, err := io.ReadFull(br, h[:]); err != nil {
			return nil, fmt.Errorf("object: truncated tree entry hash: %w", err)
		}
		entries = append(entries, &TreeEntry{
			Name: name[:len(name)-1],
			Mode: mode,
			Hash: h,
			Size: size,
		})
	}
	return &Tree{Entries: entries}, nil
}

// Walk visits every blob reachable from t in subtree order, resolving
// subtrees through b. It is used by the CLI's --name-only dump and by tests
// asserting the shape of a merged tree.
func Walk(ctx context.Context, b Backend, t *Tree, base string, fn func(path string, e *TreeEntry) error) error {
	for _, e := range t.Entries {
		p := e.Name
		if base != "" {
			p = base + "/" + e.Name
		}
		if e.IsDir() {
			sub, err := b.Tree(ctx, e.Hash)
			if err != nil {
				return err
			}
			if err := Walk(ctx, b, sub, p, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, e); err != nil {
			return err
		}
	}
	return nil
}
