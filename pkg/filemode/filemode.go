// Package filemode defines the small set of object modes a tree entry can
// carry: regular file, executable file, directory, symlink and submodule,
// plus the out-of-band Fragments bit used to mark oversized blobs that are
// stored split rather than whole.
package filemode

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// FileMode is the octal mode stored in a tree entry, using the same values
// git assigns so encoded trees stay byte-comparable with git's own.
type FileMode uint32

const (
	Empty      FileMode = 0
	Dir        FileMode = 0040000
	Regular    FileMode = 0100644
	Deprecated FileMode = 0100664
	Executable FileMode = 0100755
	Symlink    FileMode = 0120000
	Submodule  FileMode = 0160000

	// Fragments marks a blob that was split into fragments by the store
	// because it exceeded the inline size threshold; it is OR'd onto one
	// of the base modes above, never used alone.
	Fragments FileMode = 0170000
)

func (m FileMode) String() string {
	return fmt.Sprintf("%o", uint32(m))
}

func (m FileMode) IsFragments() bool {
	return m&Fragments == Fragments
}

// Base strips the Fragments bit, returning the underlying object kind.
func (m FileMode) Base() FileMode {
	if m.IsFragments() {
		return m ^ Fragments
	}
	return m
}

func (m FileMode) IsMalformed() bool {
	switch m.Base() {
	case Dir, Regular, Deprecated, Executable, Symlink, Submodule:
		return false
	default:
		return true
	}
}

// IsFile reports whether the mode addresses blob content (regular,
// executable or symlink) as opposed to a directory or submodule link.
func (m FileMode) IsFile() bool {
	switch m.Base() {
	case Regular, Deprecated, Executable, Symlink:
		return true
	default:
		return false
	}
}

func (m FileMode) ToOSFileMode() (os.FileMode, error) {
	switch m.Base() {
	case Dir, Submodule:
		return os.ModeDir, nil
	case Regular, Deprecated:
		return 0, nil
	case Executable:
		return 0111, nil
	case Symlink:
		return os.ModeSymlink, nil
	}
	return 0, fmt.Errorf("filemode: malformed mode %o", uint32(m))
}

// New parses an octal mode string as found in tree wire encoding.
func New(s string) (FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Empty, fmt.Errorf("filemode: %q is not a valid octal mode: %w", s, err)
	}
	return FileMode(v), nil
}

func (m FileMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *FileMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := New(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
