// Package sshapi exposes the merge engine's top-level entry points over SSH,
// grounded on the reference VCS's pkg/serve/sshserver (gliderlabs/ssh host,
// command dispatch by argv[0], host keys loaded via golang.org/x/crypto/ssh).
package sshapi

import (
	"context"
	"fmt"

	"github.com/gliderlabs/ssh"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"
	gossh "golang.org/x/crypto/ssh"

	"github.com/threestage/mergetree/pkg/merge"
	"github.com/threestage/mergetree/pkg/object"
)

// Server wraps an ssh.Server that accepts exactly two commands,
// "merge-tree" and "merge-base", over a single shared backend — no
// authentication beyond host identity, since unlike the reference repo's
// push/fetch surface a merge-tree request neither reads nor writes
// repository refs, only objects already reachable from hashes the caller
// supplies.
type Server struct {
	srv     *ssh.Server
	backend object.Backend
	log     logrus.FieldLogger

	contentMergeLimit  int64
	showRenameProgress bool
}

type Options struct {
	Listen             string
	HostPrivateKeys    []string
	Log                logrus.FieldLogger
	ContentMergeLimit  int64
	ShowRenameProgress bool
}

func NewServer(backend object.Backend, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	listen := opts.Listen
	if listen == "" {
		listen = "127.0.0.1:8722"
	}
	s := &Server{
		backend:            backend,
		log:                log,
		contentMergeLimit:  opts.ContentMergeLimit,
		showRenameProgress: opts.ShowRenameProgress,
	}
	srv := &ssh.Server{
		Addr:    listen,
		Version: "mergetree-ssh",
		Handler: s.handleSession,
	}
	for _, pk := range opts.HostPrivateKeys {
		s.addHostKey(srv, []byte(pk))
	}
	s.srv = srv
	return s
}

func (s *Server) addHostKey(srv *ssh.Server, pemBytes []byte) {
	key, err := gossh.ParsePrivateKey(pemBytes)
	if err != nil {
		s.log.Errorf("sshapi: parse host key: %v", err)
		return
	}
	srv.AddHostKey(key)
	s.log.Infof("sshapi: loaded host key <%s> fingerprint %s", key.PublicKey().Type(), gossh.FingerprintSHA256(key.PublicKey()))
}

func (s *Server) ListenAndServe() error {
	s.log.Infof("mergesvc ssh server listening on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleSession re-tokenizes the raw command line with shell quoting rules
// — the same defensive re-parse the reference SSH command server applies
// to RawCommand() rather than trusting gliderlabs/ssh's own argv split —
// and dispatches on the leading token.
func (s *Server) handleSession(sess ssh.Session) {
	args, err := shellquote.Split(sess.RawCommand())
	if err != nil || len(args) == 0 {
		fmt.Fprintln(sess.Stderr(), "mergetree-ssh: no command given, expected merge-tree or merge-base")
		_ = sess.Exit(1)
		return
	}
	var exitCode int
	switch args[0] {
	case "merge-tree":
		exitCode = s.runMergeTree(sess, args[1:])
	case "merge-base":
		exitCode = s.runMergeBase(sess, args[1:])
	default:
		fmt.Fprintf(sess.Stderr(), "mergetree-ssh: unregistered command %q\n", args[0])
		exitCode = 1
	}
	_ = sess.Exit(exitCode)
}

func (s *Server) mergeConfig(branch1, branch2 string) merge.Config {
	cfg := merge.NewConfig(branch1, branch2)
	if s.contentMergeLimit > 0 {
		cfg.ContentMergeLimit = s.contentMergeLimit
	}
	cfg.ShowRenameProgress = s.showRenameProgress
	cfg.Log = s.log
	return cfg
}
