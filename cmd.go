// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package grneval

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"

	"git.arvados.org/arvados.git/lib/cmd"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"concat-networks":  &concatNetworks{},
		"evaluate-network": &evaluateNetwork{},
	})
)

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.StandardLogger().Formatter = &log.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func servePprof(addr string) {
	if addr == "" {
		return
	}
	go func() {
		log.Println(http.ListenAndServe(addr, nil))
	}()
}

var errUsage = errors.New("usage error")

// exitCode reports err on stderr and converts it to an exit status:
// 2 for usage errors, 1 for everything else.
func exitCode(err error, stderr io.Writer) int {
	if err == nil || err == flag.ErrHelp {
		return 0
	}
	fmt.Fprintf(stderr, "%s\n", err)
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}
