package sshapi

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/gliderlabs/ssh"

	"github.com/threestage/mergetree/internal/commitwalk"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/merge"
	"github.com/threestage/mergetree/pkg/mergesvc"
)

func writeResult(w io.Writer, resp mergesvc.MergeResponse) {
	fmt.Fprintf(w, "tree %s\n", orDash(resp.Tree))
	fmt.Fprintf(w, "clean %d\n", resp.Clean)
	for _, p := range resp.Conflicts {
		fmt.Fprintf(w, "conflict %s\n", p)
	}
	for _, m := range resp.Messages {
		fmt.Fprint(w, m)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// runMergeTree implements the "merge-tree <base> <ours> <theirs>" command,
// the SSH-transport equivalent of POST /v1/merge-tree. args excludes the
// leading "merge-tree" token; handleSession already split it off.
func (s *Server) runMergeTree(sess ssh.Session, args []string) int {
	fs := flag.NewFlagSet("merge-tree", flag.ContinueOnError)
	fs.SetOutput(sess.Stderr())
	branch1 := fs.String("branch1", "ours", "label for the first side")
	branch2 := fs.String("branch2", "theirs", "label for the second side")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 3 {
		fmt.Fprintln(sess.Stderr(), "usage: merge-tree [--branch1=NAME] [--branch2=NAME] <base> <ours> <theirs>")
		return 2
	}
	base, err1 := hash.NewValidated(fs.Arg(0))
	ours, err2 := hash.NewValidated(fs.Arg(1))
	theirs, err3 := hash.NewValidated(fs.Arg(2))
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Fprintln(sess.Stderr(), "mergetree-ssh: invalid tree hash")
		return 2
	}
	result, err := merge.Merge(context.Background(), s.backend, base, ours, theirs, s.mergeConfig(*branch1, *branch2))
	return s.writeOrFail(sess, result, err)
}

// runMergeBase implements "merge-base <a> <b>", printing one merge-base
// commit hash per line.
func (s *Server) runMergeBase(sess ssh.Session, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(sess.Stderr(), "usage: merge-base <a> <b>")
		return 2
	}
	a, err1 := hash.NewValidated(args[0])
	b, err2 := hash.NewValidated(args[1])
	if err1 != nil || err2 != nil {
		fmt.Fprintln(sess.Stderr(), "mergetree-ssh: invalid commit hash")
		return 2
	}
	bases, err := commitwalk.MergeBases(sess.Context(), s.backend, a, b)
	if err != nil {
		fmt.Fprintf(sess.Stderr(), "mergetree-ssh: %v\n", err)
		return 1
	}
	for _, h := range bases {
		fmt.Fprintln(sess, h.String())
	}
	return 0
}

func (s *Server) writeOrFail(sess ssh.Session, result *merge.Result, err error) int {
	if result == nil || result.Clean == merge.CleanError {
		fmt.Fprintf(sess.Stderr(), "mergetree-ssh: merge failed: %v\n", err)
		return 1
	}
	writeResult(sess, mergesvc.NewMergeResponse(result))
	if result.Clean == merge.CleanConflicts {
		return 1
	}
	return 0
}
