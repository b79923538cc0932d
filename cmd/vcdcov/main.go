// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command vcdcov reads a VCD trace and writes a per-signal toggle-coverage
// report.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/google/gops/agent"

	"github.com/ClusterCockpit/vcdcov/internal/config"
	"github.com/ClusterCockpit/vcdcov/internal/metrics"
	"github.com/ClusterCockpit/vcdcov/internal/pipeline"
	"github.com/ClusterCockpit/vcdcov/internal/report"
	vlog "github.com/ClusterCockpit/vcdcov/pkg/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("vcdcov", flag.ContinueOnError)
	inFile := fs.String("in-file", os.Getenv("VCDCOV_IN_FILE"), "input VCD file")
	outFile := fs.String("out-file", os.Getenv("VCDCOV_OUT_FILE"), "output report file")
	separator := fs.String("separator", os.Getenv("VCDCOV_SEPARATOR"), "vector/port change-line separator character (default '<')")
	configPath := fs.String("config", "", "optional JSON configuration file")
	envPath := fs.String("env-file", "", "optional .env file (default .env, missing file is not an error)")
	logLevel := fs.String("loglevel", "", "debug|info|notice|warn|err|crit (default info)")
	logDate := fs.Bool("logdate", false, "prefix log lines with an RFC3339 timestamp")
	metricsAddr := fs.String("metrics-addr", "", "optional address to serve Prometheus metrics on for the run's duration")
	useGops := fs.Bool("gops", false, "listen for github.com/google/gops/agent runtime diagnostics")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "vcdcov: loading .env: %v\n", err)
		return 1
	}
	if *inFile == "" {
		*inFile = os.Getenv("VCDCOV_IN_FILE")
	}
	if *outFile == "" {
		*outFile = os.Getenv("VCDCOV_OUT_FILE")
	}
	if *separator == "" {
		*separator = os.Getenv("VCDCOV_SEPARATOR")
	}

	flagCfg := config.Config{
		InFile:      *inFile,
		OutFile:     *outFile,
		Separator:   *separator,
		LogLevel:    *logLevel,
		LogDateTime: *logDate,
		MetricsAddr: *metricsAddr,
		Gops:        *useGops,
	}
	cfg, err := config.Resolve(flagCfg, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vcdcov: %v\n", err)
		return 1
	}

	logger, err := vlog.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vcdcov: %v\n", err)
		return 1
	}
	defer logger.Close()
	logger.AddSink(os.Stderr)
	logger.SetLogDateTime(cfg.LogDateTime)
	if level, err := vlog.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Warnf("gops agent did not start: %v", err)
		} else {
			defer agent.Close()
		}
	}

	collector := metrics.New()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warnf("metrics server stopped: %v", err)
			}
		}()
		defer metricsServer.Close()
	}

	if len(cfg.Separator) != 1 {
		logger.Errorf("separator must be exactly one byte, got %q", cfg.Separator)
		return 1
	}

	in, err := os.Open(cfg.InFile)
	if err != nil {
		logger.Errorf("opening input file: %v", err)
		return 1
	}
	defer in.Close()

	out, err := os.Create(cfg.OutFile)
	if err != nil {
		logger.Errorf("creating output file: %v", err)
		return 1
	}
	defer out.Close()

	vcd, err := pipeline.Run(context.Background(), in, cfg.Separator[0], collector, collector)
	if err != nil {
		logger.Errorf("analysis failed: %v", err)
		return 1
	}
	logger.Infof("analysis complete: %s", collector.Summary())

	if err := report.Write(out, vcd); err != nil {
		logger.Errorf("writing report: %v", err)
		return 1
	}

	return 0
}
