// Package hash implements the content-address used throughout the merge
// engine: a fixed-width BLAKE3 digest with hex (de)serialization for JSON and
// TOML, matching the object-naming scheme of the reference VCS this engine
// was adapted from.
package hash

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"

	"github.com/zeebo/blake3"
)

const (
	// Size is the digest width in bytes.
	Size = 32
	// HexSize is the digest width in hex characters.
	HexSize = Size * 2
)

// Hash is a BLAKE3 digest identifying a Blob, Tree or Commit object.
type Hash [Size]byte

// Zero is the hash of no object; Collector entries use it as "absent".
var Zero Hash

func (h Hash) IsZero() bool {
	return h == Zero
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(h[:], decoded)
	return nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	copy(h[:], decoded)
	return nil
}

// New decodes a hex string into a Hash without validating its length.
func New(s string) Hash {
	var h Hash
	b, _ := hex.DecodeString(s)
	copy(h[:], b)
	return h
}

// NewValidated decodes a hex string, rejecting anything that isn't exactly
// HexSize valid hex characters.
func NewValidated(s string) (Hash, error) {
	if len(s) != HexSize {
		return Zero, fmt.Errorf("hash: %q is not a valid object id", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("hash: %q is not a valid object id: %w", s, err)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// Sort sorts hashes in increasing byte order; the tree writer relies on this
// for canonical subtree ordering of the override-our/override-their name
// sets.
func Sort(hs []Hash) {
	sort.Sort(sliceSort(hs))
}

type sliceSort []Hash

func (p sliceSort) Len() int           { return len(p) }
func (p sliceSort) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p sliceSort) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// Hasher incrementally hashes object content.
type Hasher struct {
	hash.Hash
}

func NewHasher() Hasher {
	return Hasher{Hash: blake3.New()}
}

func (h Hasher) Sum() (out Hash) {
	copy(out[:], h.Hash.Sum(nil))
	return
}

// Of hashes a single byte slice in one call, the common case for blob and
// tree encoding.
func Of(b []byte) Hash {
	h := NewHasher()
	_, _ = h.Write(b)
	return h.Sum()
}
