// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// pingserver bootstraps against a seed list, starts a ClusterPinger, and
// logs every topology change until interrupted. It exists to exercise the
// bootstrap/factory/pinger wiring end to end the way a real application
// would, as a small flag-driven binary rather than a subcommand framework.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/youseeus/mongodb-async-driver/factory"
	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/pinger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	seeds := flag.String("seeds", "localhost:27017", "comma-separated seed host:port list")
	flag.Parse()

	cluster := model.NewCluster()
	base := factory.NewSocketConnectionFactory()

	bootstrap := factory.NewBootstrapConnectionFactory(base, cluster, strings.Split(*seeds, ",")...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bootstrap.Bootstrap(ctx); err != nil {
		return fmt.Errorf("pingserver: bootstrap: %w", err)
	}

	log := logrus.WithField("cluster", cluster.Kind())
	log.Info("bootstrap complete")

	prober := factory.NewProber(bootstrap.GetDelegate())
	clusterPinger := pinger.Start(cluster, prober, pinger.WithLogger(log))
	defer clusterPinger.Stop()

	changes, unsubscribe, err := clusterPinger.Subscribe()
	if err != nil {
		return fmt.Errorf("pingserver: subscribe: %w", err)
	}
	defer unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-changes:
			logTopology(log, cluster)
		case <-sigCh:
			log.Info("shutting down")
			return nil
		}
	}
}

func logTopology(log *logrus.Entry, cluster *model.Cluster) {
	for _, s := range cluster.Servers() {
		log.WithFields(logrus.Fields{
			"server": s.Name,
			"role":   s.Role(),
			"rtt":    s.AverageRTT(),
			"rtt90":  s.RTT90(),
		}).Info("server status")
	}
}
