package mergesvc

import (
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/merge"
)

// MergeTreeRequest is the transport-agnostic request body for a
// non-recursive merge, shared by httpapi's JSON decoding and sshapi's flag
// parsing.
type MergeTreeRequest struct {
	Base    string `json:"base"`
	Ours    string `json:"ours"`
	Theirs  string `json:"theirs"`
	Branch1 string `json:"branch1,omitempty"`
	Branch2 string `json:"branch2,omitempty"`
}

// MergeCommitsRequest is the request body for the recursive, commit-level
// entry point (spec.md §4.6): zero or more ancestor commits plus two heads.
type MergeCommitsRequest struct {
	Ancestors []string `json:"ancestors,omitempty"`
	Head1     string   `json:"head1"`
	Head2     string   `json:"head2"`
	Branch1   string   `json:"branch1,omitempty"`
	Branch2   string   `json:"branch2,omitempty"`
}

// MergeResponse is the wire shape of merge.Result: a tree hash (empty on
// conflict-free absence or error), the trinary clean state, conflicted
// paths and their accumulated messages.
type MergeResponse struct {
	Tree      string   `json:"tree,omitempty"`
	Clean     int      `json:"clean"`
	Conflicts []string `json:"conflicts,omitempty"`
	Messages  []string `json:"messages,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// NewMergeResponse adapts a merge.Result into the wire response, the single
// conversion point both transports share.
func NewMergeResponse(r *merge.Result) MergeResponse {
	resp := MergeResponse{Clean: int(r.Clean)}
	if !r.Tree.IsZero() {
		resp.Tree = r.Tree.String()
	}
	if r.Session != nil {
		resp.Conflicts = r.Session.ConflictedPaths()
		resp.Messages = r.Session.Messages()
	}
	return resp
}

func parseHash(s string) (hash.Hash, error) {
	if s == "" {
		return hash.Zero, nil
	}
	return hash.NewValidated(s)
}

// ParseHashes validates and converts a request's ancestor hash strings.
func ParseHashes(ss []string) ([]hash.Hash, error) {
	out := make([]hash.Hash, 0, len(ss))
	for _, s := range ss {
		h, err := hash.NewValidated(s)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
