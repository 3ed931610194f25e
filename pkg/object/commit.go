package object

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/threestage/mergetree/pkg/hash"
)

var commitMagic = [4]byte{'M', 'C', 0x00, 0x01}

const dateFormat = "-0700"

// Signature is the author or committer line of a commit, in the same
// "Name <email> unixtime zone" shape the reference VCS uses.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format(dateFormat))
}

func DecodeSignature(line string) Signature {
	var s Signature
	open := strings.LastIndexByte(line, '<')
	closeIdx := strings.LastIndexByte(line, '>')
	if open == -1 || closeIdx == -1 || closeIdx < open {
		return s
	}
	s.Name = strings.TrimSpace(line[:open])
	s.Email = line[open+1 : closeIdx]
	rest := strings.TrimSpace(line[closeIdx+1:])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return s
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return s
	}
	s.When = time.Unix(ts, 0).In(time.UTC)
	if len(fields) < 2 || len(fields[1]) != 5 {
		return s
	}
	tz := fields[1]
	hours, err1 := strconv.ParseInt(tz[:3], 10, 64)
	mins, err2 := strconv.ParseInt(tz[3:], 10, 64)
	if err1 != nil || err2 != nil {
		return s
	}
	if hours < 0 {
		mins *= -1
	}
	s.When = s.When.In(time.FixedZone("", int(hours*3600+mins*60)))
	return s
}

// Commit is a point in history: a tree plus zero or more parents. The
// recursive driver treats a Commit as opaque except for Tree and Parents; it
// also synthesizes Commit values in memory (never stored) to represent a
// merged set of ancestors, so Hash is optional on those.
type Commit struct {
	Hash      hash.Hash
	Tree      hash.Hash
	Parents   []hash.Hash
	Author    Signature
	Committer Signature
	Message   string
}

// Root resolves the commit's root tree through b.
func (c *Commit) Root(ctx context.Context, b Backend) (*Tree, error) {
	return b.Tree(ctx, c.Tree)
}

// Less orders commits by committer time, newest first, for the merge-base
// max-heap walk.
func (c *Commit) Less(o *Commit) bool {
	return c.Committer.When.After(o.Committer.When)
}

func (c *Commit) Encode(w io.Writer) error {
	if _, err := w.Write(commitMagic[:]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "tree %s\n", c.Tree); err != nil {
		return err
	}
	for _, p := range c.Parents {
		if _, err := fmt.Fprintf(w, "parent %s\n", p); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "author %s\n", c.Author); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "committer %s\n", c.Committer); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"+c.Message); err != nil {
		return err
	}
	return nil
}

func DecodeCommit(r io.Reader) (*Commit, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("object: truncated commit: %w", err)
	}
	if magic != commitMagic {
		return nil, fmt.Errorf("object: not a commit object")
	}
	c := &Commit{}
	for {
		line, err := br.ReadString('\n')
		trimmed := strings.TrimRight(line, "\n")
		if trimmed == "" {
			break
		}
		switch {
		case strings.HasPrefix(trimmed, "tree "):
			c.Tree = hash.New(strings.TrimPrefix(trimmed, "tree "))
		case strings.HasPrefix(trimmed, "parent "):
			c.Parents = append(c.Parents, hash.New(strings.TrimPrefix(trimmed, "parent ")))
		case strings.HasPrefix(trimmed, "author "):
			c.Author = DecodeSignature(strings.TrimPrefix(trimmed, "author "))
		case strings.HasPrefix(trimmed, "committer "):
			c.Committer = DecodeSignature(strings.TrimPrefix(trimmed, "committer "))
		}
		if err == io.EOF {
			return c, nil
		}
		if err != nil {
			return nil, err
		}
	}
	rest, err := io.ReadAll(br)
	if err != nil && err != io.EOF {
		return nil, err
	}
	c.Message = string(bytes.TrimPrefix(rest, []byte{}))
	return c, nil
}

// Blob is a file's raw content; the merge engine only touches blobs through
// content-merge collaborators (see pkg/merge.ContentMerger), never directly.
type Blob struct {
	Hash hash.Hash
	Size int64
}
