// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/merge"
	"github.com/threestage/mergetree/pkg/mergesvc"
	"github.com/threestage/mergetree/pkg/odb"
)

// storeFlags is the object-store selector shared by merge-tree and
// merge-base, a CLI-flag mirror of mergesvc.StorageConfig so both the
// standalone binary and the server daemons resolve storage the same way.
type storeFlags struct {
	Store string `name:"store" help:"Path to the object store directory" default:"./mergesvc-objects"`
}

func (f storeFlags) openBackend(ctx context.Context) (*odb.ODB, error) {
	storage, err := (mergesvc.StorageConfig{Kind: "file", Root: f.Store}).Build(ctx)
	if err != nil {
		return nil, err
	}
	return odb.New(storage), nil
}

// MergeTree runs the three-way tree merge over raw object hashes, the CLI
// surface of the same entry point pkg/mergesvc/httpapi and sshapi expose
// over the network (POST /v1/merge-tree, the "merge-tree" SSH command).
type MergeTree struct {
	storeFlags

	Base    string `arg:"" name:"base" help:"Merge-base tree"`
	Ours    string `arg:"" name:"ours" help:"Our tree"`
	Theirs  string `arg:"" name:"theirs" help:"Their tree"`
	Branch1 string `name:"branch1" help:"Label for the ours side in conflict messages" default:"ours"`
	Branch2 string `name:"branch2" help:"Label for the theirs side in conflict messages" default:"theirs"`

	ContentMergeLimit int64 `name:"content-merge-limit" help:"Maximum blob size eligible for content merge, in bytes"`
	NameOnly          bool  `name:"name-only" help:"Only output conflicted paths"`
	Z                 bool  `name:":z" short:"z" help:"Terminate entries with NUL byte"`
	JSON              bool  `name:"json" help:"Print the result as JSON"`
}

func parseArgHash(name, s string) (hash.Hash, error) {
	h, err := hash.NewValidated(s)
	if err != nil {
		return hash.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return h, nil
}

func (c *MergeTree) Run(g *Globals) error {
	ctx := context.Background()
	base, err := parseArgHash("base", c.Base)
	if err != nil {
		return err
	}
	ours, err := parseArgHash("ours", c.Ours)
	if err != nil {
		return err
	}
	theirs, err := parseArgHash("theirs", c.Theirs)
	if err != nil {
		return err
	}

	backend, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	cfg := merge.NewConfig(c.Branch1, c.Branch2)
	if c.ContentMergeLimit > 0 {
		cfg.ContentMergeLimit = c.ContentMergeLimit
	}

	result, err := merge.Merge(ctx, backend, base, ours, theirs, cfg)
	if err != nil {
		return err
	}
	printMergeResult(os.Stdout, result, c.NameOnly, c.Z, c.JSON)
	if result.Clean != merge.CleanClean {
		return errors.New("merge-tree: there are conflicting files")
	}
	return nil
}

func printMergeResult(w io.Writer, result *merge.Result, nameOnly, z, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(w).Encode(mergesvc.NewMergeResponse(result))
		return
	}
	newline := byte('\n')
	if z {
		newline = '\x00'
	}
	fmt.Fprintf(w, "%s%c", result.Tree, newline)
	paths := result.Session.ConflictedPaths()
	if nameOnly {
		for _, p := range paths {
			fmt.Fprintf(w, "%s%c", p, newline)
		}
		return
	}
	for _, p := range paths {
		fmt.Fprintf(w, "CONFLICT %s%c", p, newline)
	}
	msgs := result.Session.Messages()
	if len(msgs) == 0 {
		return
	}
	fmt.Fprintf(w, "%c", newline)
	for _, m := range msgs {
		fmt.Fprintf(w, "%s", m)
	}
}
