package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/threestage/mergetree/internal/commitwalk"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/merge"
	"github.com/threestage/mergetree/pkg/mergesvc"
)

func (s *Server) mergeConfig(branch1, branch2 string) merge.Config {
	cfg := merge.NewConfig(branch1, branch2)
	if s.defaultContentMergeLimit > 0 {
		cfg.ContentMergeLimit = s.defaultContentMergeLimit
	}
	cfg.ShowRenameProgress = s.showRenameProgress
	cfg.Log = s.log
	return cfg
}

// handleMergeTree implements POST /v1/merge-tree: the non-recursive entry
// point (spec.md §6) over three tree hashes.
func (s *Server) handleMergeTree(w http.ResponseWriter, r *http.Request) {
	var req mergesvc.MergeTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, "decoding request: %v", err)
		return
	}
	base, err1 := hash.NewValidated(req.Base)
	ours, err2 := hash.NewValidated(req.Ours)
	theirs, err3 := hash.NewValidated(req.Theirs)
	if err := errors.Join(err1, err2, err3); err != nil {
		renderError(w, http.StatusBadRequest, "invalid tree hash: %v", err)
		return
	}
	branch1, branch2 := orDefault(req.Branch1, "ours"), orDefault(req.Branch2, "theirs")
	result, err := merge.Merge(r.Context(), s.backend, base, ours, theirs, s.mergeConfig(branch1, branch2))
	s.respondMerge(w, result, err)
}

// handleMergeCommits implements POST /v1/merge-commits: the recursive,
// multi-ancestor entry point (spec.md §4.6). When Ancestors is empty the
// caller wants the two heads' own merge bases discovered first, the way the
// CLI's merge-tree subcommand does when no --merge-base is given.
func (s *Server) handleMergeCommits(w http.ResponseWriter, r *http.Request) {
	var req mergesvc.MergeCommitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, "decoding request: %v", err)
		return
	}
	head1, err1 := hash.NewValidated(req.Head1)
	head2, err2 := hash.NewValidated(req.Head2)
	if err := errors.Join(err1, err2); err != nil {
		renderError(w, http.StatusBadRequest, "invalid commit hash: %v", err)
		return
	}
	ancestors, err := mergesvc.ParseHashes(req.Ancestors)
	if err != nil {
		renderError(w, http.StatusBadRequest, "invalid ancestor hash: %v", err)
		return
	}
	if len(ancestors) == 0 {
		ancestors, err = commitwalk.MergeBases(r.Context(), s.backend, head1, head2)
		if err != nil {
			renderError(w, http.StatusInternalServerError, "finding merge bases: %v", err)
			return
		}
	}
	branch1, branch2 := orDefault(req.Branch1, "ours"), orDefault(req.Branch2, "theirs")
	result, err := merge.RecursiveMerge(r.Context(), s.backend, ancestors, head1, head2, s.mergeConfig(branch1, branch2))
	s.respondMerge(w, result, err)
}

func (s *Server) respondMerge(w http.ResponseWriter, result *merge.Result, err error) {
	if result == nil || result.Clean == merge.CleanError {
		s.log.WithError(err).Error("merge failed")
		renderJSON(w, http.StatusUnprocessableEntity, mergeErrorResponse(result, err))
		return
	}
	renderJSON(w, http.StatusOK, mergesvc.NewMergeResponse(result))
}

func mergeErrorResponse(result *merge.Result, err error) mergesvc.MergeResponse {
	resp := mergesvc.MergeResponse{Clean: int(merge.CleanError)}
	if err != nil {
		resp.Error = err.Error()
	}
	if result != nil && result.Session != nil {
		resp.Messages = result.Session.Messages()
	}
	return resp
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
