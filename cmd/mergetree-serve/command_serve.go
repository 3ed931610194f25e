// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/threestage/mergetree/pkg/mergesvc"
	"github.com/threestage/mergetree/pkg/mergesvc/httpapi"
	"github.com/threestage/mergetree/pkg/mergesvc/sshapi"
	"github.com/threestage/mergetree/pkg/odb"
)

// Serve starts the HTTP and/or SSH merge services described by a TOML
// ServiceConfig, the mergetree-serve equivalent of zeta-serve's "httpd"/
// "sshd" subcommands, collapsed into one since both share a single object
// store and merge.Config.
type Serve struct {
	Config   string `short:"c" name:"config" help:"Location of server config file" type:"path" default:"mergetree-serve.toml"`
	HTTPOnly bool   `name:"http-only" help:"Only start the HTTP service"`
	SSHOnly  bool   `name:"ssh-only" help:"Only start the SSH service"`
}

func (c *Serve) Run(g *Globals) error {
	sc, err := mergesvc.NewServiceConfig(c.Config)
	if err != nil {
		logrus.Errorf("mergetree-serve: load config error: %v", err)
		return err
	}
	storage, err := sc.OpenStorage(context.Background())
	if err != nil {
		logrus.Errorf("mergetree-serve: open storage error: %v", err)
		return err
	}
	backend := odb.New(storage, odb.WithLogger(logrus.StandardLogger()))

	closer := newCloser()
	var shutdowners []Shutdowner

	if !c.SSHOnly {
		hsrv := httpapi.NewServer(backend, sc.JWTSecret, httpapi.Options{
			Listen:             sc.HTTPListen,
			ContentMergeLimit:  sc.ContentMergeLimit,
			ShowRenameProgress: sc.ShowRenameProgress,
			IdleTimeout:        sc.IdleTimeout,
		})
		shutdowners = append(shutdowners, hsrv)
		go func() {
			if err := hsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("mergetree-serve: http listen error: %v", err)
			}
		}()
	}
	if !c.HTTPOnly {
		ssrv := sshapi.NewServer(backend, sshapi.Options{
			Listen:             sc.SSHListen,
			HostPrivateKeys:    sc.HostPrivateKeys,
			ContentMergeLimit:  sc.ContentMergeLimit,
			ShowRenameProgress: sc.ShowRenameProgress,
		})
		shutdowners = append(shutdowners, ssrv)
		go func() {
			if err := ssrv.ListenAndServe(); err != nil {
				logrus.Errorf("mergetree-serve: ssh listen error: %v", err)
			}
		}()
	}
	if len(shutdowners) == 0 {
		logrus.Errorf("mergetree-serve: both --http-only and --ssh-only set, nothing to run")
		return errors.New("no service selected")
	}
	go closer.listenSignal(context.Background(), shutdowners...)
	<-closer.ch
	_ = backend.Close()
	logrus.Infof("mergetree-serve exited")
	return nil
}
