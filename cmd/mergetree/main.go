// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"time"

	"github.com/threestage/mergetree/pkg/kong"
	"github.com/threestage/mergetree/pkg/version"
)

type App struct {
	Globals
	MergeTree MergeTree `cmd:"merge-tree" help:"Three-way merge two trees against a common ancestor"`
	MergeBase MergeBase `cmd:"merge-base" help:"Find the merge bases of two commits"`
}

func main() {
	var app App
	ctx := kong.Parse(&app,
		kong.Name("mergetree"),
		kong.Description("Three-way tree-merge engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.GetVersionString(),
		},
	)
	now := time.Now()
	err := ctx.Run(&app.Globals)
	if app.Verbose {
		app.DbgPrint("time spent: %v", time.Since(now))
	}
	if err != nil {
		os.Exit(1)
	}
}
