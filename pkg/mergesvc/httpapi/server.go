// Package httpapi exposes the merge engine's top-level entry points
// (spec.md §6) over HTTP, grounded on the reference VCS's own
// pkg/serve/httpserver (gorilla/mux router, bearer-token auth, structured
// logging via logrus).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/threestage/mergetree/pkg/object"
)

// Server mirrors httpserver.Server's shape: a mux.Router in front of one
// shared backend, with a dedicated secret for bearer-token verification.
type Server struct {
	srv    *http.Server
	r      *mux.Router
	backend object.Backend
	log    logrus.FieldLogger
	secret string

	defaultContentMergeLimit int64
	showRenameProgress       bool
}

// Options configures NewServer beyond the mandatory backend/secret pair.
type Options struct {
	Listen             string
	Log                logrus.FieldLogger
	ContentMergeLimit  int64
	ShowRenameProgress bool
	IdleTimeout        time.Duration
}

func NewServer(backend object.Backend, jwtSecret string, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	listen := opts.Listen
	if listen == "" {
		listen = "127.0.0.1:8721"
	}
	idleTimeout := opts.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 5 * time.Minute
	}
	s := &Server{
		backend:                  backend,
		log:                      log,
		secret:                   jwtSecret,
		defaultContentMergeLimit: opts.ContentMergeLimit,
		showRenameProgress:       opts.ShowRenameProgress,
		srv: &http.Server{
			Addr:              listen,
			ReadHeaderTimeout: 30 * time.Second,
			IdleTimeout:       idleTimeout,
		},
	}
	s.initialize()
	return s
}

func (s *Server) initialize() {
	r := mux.NewRouter().UseEncodedPath()
	r.HandleFunc("/v1/merge-tree", s.requireAuth(s.handleMergeTree)).Methods(http.MethodPost)
	r.HandleFunc("/v1/merge-commits", s.requireAuth(s.handleMergeCommits)).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.r = r
	s.srv.Handler = s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	s.r.ServeHTTP(w, r)
	s.log.WithField("spent", time.Since(now)).Infof("%s %s", r.Method, r.URL.Path)
}

func (s *Server) ListenAndServe() error {
	s.log.Infof("mergesvc http server listening on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
