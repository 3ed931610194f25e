package sshapi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/pkg/mergesvc"
)

func TestWriteResultFormatsConflicts(t *testing.T) {
	var buf bytes.Buffer
	writeResult(&buf, mergesvc.MergeResponse{
		Tree:      "deadbeef",
		Clean:     0,
		Conflicts: []string{"a", "b"},
		Messages:  []string{"CONFLICT (modify/delete): a\n"},
	})
	out := buf.String()
	require.Contains(t, out, "tree deadbeef\n")
	require.Contains(t, out, "clean 0\n")
	require.Contains(t, out, "conflict a\n")
	require.Contains(t, out, "conflict b\n")
	require.Contains(t, out, "CONFLICT (modify/delete): a\n")
}

func TestOrDash(t *testing.T) {
	require.Equal(t, "-", orDash(""))
	require.Equal(t, "abc", orDash("abc"))
}
