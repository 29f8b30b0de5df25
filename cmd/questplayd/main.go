// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ManuGH/questplay/internal/app/bootstrap"
	"github.com/ManuGH/questplay/internal/daemon"
	xglog "github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	d, err := bootstrap.WireDaemon(ctx, bootstrap.Options{
		ConfigPath: strings.TrimSpace(*configPath),
		Version:    version.Version,
	}, nil)
	if err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.wire_failed").Msg("startup failed")
		stop()
		os.Exit(1)
	}

	d.Logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("listen", d.Config.API.ListenAddr).
		Str(xglog.FieldEvent, "daemon.starting").
		Msg("starting questplayd")

	if err := d.Run(ctx); err != nil {
		d.Logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon exited with error")
		stop()
		os.Exit(1)
	}
}
