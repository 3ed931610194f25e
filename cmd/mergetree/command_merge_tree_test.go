package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/threestage/mergetree/pkg/filemode"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/merge"
	"github.com/threestage/mergetree/pkg/object"
	"github.com/threestage/mergetree/pkg/odb"
)

func TestParseArgHashRejectsGarbage(t *testing.T) {
	_, err := parseArgHash("base", "not-a-hash")
	require.Error(t, err)
}

func TestParseArgHashAccepts(t *testing.T) {
	h, err := parseArgHash("base", hash.Zero.String())
	require.NoError(t, err)
	require.Equal(t, hash.Zero, h)
}

func writeFileTree(t *testing.T, ctx context.Context, b object.Backend, files map[string]string) hash.Hash {
	t.Helper()
	entries := make([]*object.TreeEntry, 0, len(files))
	for name, content := range files {
		h, err := b.WriteBlob(ctx, []byte(content))
		require.NoError(t, err)
		entries = append(entries, &object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: h})
	}
	th, err := b.WriteTree(ctx, object.NewTree(entries))
	require.NoError(t, err)
	return th
}

func TestPrintMergeResultCleanNameOnly(t *testing.T) {
	ctx := context.Background()
	backend := odb.New(odb.NewMemoryStorage())
	base := writeFileTree(t, ctx, backend, map[string]string{"a": "same"})

	result, err := merge.Merge(ctx, backend, base, base, base, merge.NewConfig("ours", "theirs"))
	require.NoError(t, err)

	var buf bytes.Buffer
	printMergeResult(&buf, result, true, false, false)
	require.Equal(t, result.Tree.String()+"\n", buf.String())
}

func TestPrintMergeResultConflict(t *testing.T) {
	ctx := context.Background()
	backend := odb.New(odb.NewMemoryStorage())
	base := writeFileTree(t, ctx, backend, map[string]string{"a": "base"})
	ours := writeFileTree(t, ctx, backend, map[string]string{"a": "ours"})
	theirs := writeFileTree(t, ctx, backend, map[string]string{})

	result, err := merge.Merge(ctx, backend, base, ours, theirs, merge.NewConfig("ours", "theirs"))
	require.NoError(t, err)
	require.Equal(t, merge.CleanConflicts, result.Clean)

	var buf bytes.Buffer
	printMergeResult(&buf, result, false, false, false)
	out := buf.String()
	require.Contains(t, out, "CONFLICT a\n")
}

func TestPrintMergeResultJSON(t *testing.T) {
	ctx := context.Background()
	backend := odb.New(odb.NewMemoryStorage())
	base := writeFileTree(t, ctx, backend, map[string]string{"a": "same"})

	result, err := merge.Merge(ctx, backend, base, base, base, merge.NewConfig("ours", "theirs"))
	require.NoError(t, err)

	var buf bytes.Buffer
	printMergeResult(&buf, result, false, false, true)
	require.Contains(t, buf.String(), `"clean":1`)
}
