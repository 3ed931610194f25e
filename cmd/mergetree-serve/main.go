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
	Serve Serve `cmd:"serve" help:"start the merge-tree http and/or ssh service"`
}

func main() {
	var app App
	ctx := kong.Parse(&app,
		kong.Name("mergetree-serve"),
		kong.Description("Three-way tree-merge engine — remote service"),
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
