// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/threestage/mergetree/internal/commitwalk"
)

// MergeBase prints the merge bases of two commits, the CLI surface of the
// "merge-base" SSH command and a building block for merge-tree callers that
// only have commit hashes rather than a pre-resolved ancestor tree.
type MergeBase struct {
	storeFlags

	Head1 string `arg:"" name:"commit1" help:"First commit"`
	Head2 string `arg:"" name:"commit2" help:"Second commit"`
}

func (c *MergeBase) Run(g *Globals) error {
	ctx := context.Background()
	head1, err := parseArgHash("commit1", c.Head1)
	if err != nil {
		return err
	}
	head2, err := parseArgHash("commit2", c.Head2)
	if err != nil {
		return err
	}

	backend, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	bases, err := commitwalk.MergeBases(ctx, backend, head1, head2)
	if err != nil {
		return err
	}
	for _, b := range bases {
		fmt.Fprintln(os.Stdout, b.String())
	}
	return nil
}
