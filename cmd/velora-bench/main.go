// Copyright 2025 Velora, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// velora-bench runs a reference pipeline (NumbersScan -> Filter ->
// Projection -> RowCountSink) with the configured concurrency and vector
// size, and reports per-operator runtime stats.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veloradb/velora/config"
	"github.com/veloradb/velora/executor"
	"github.com/veloradb/velora/metrics"
	"github.com/veloradb/velora/util/chunk"
	"github.com/veloradb/velora/util/execdetails"
	"github.com/veloradb/velora/util/logutil"
	"github.com/veloradb/velora/util/memory"
)

var (
	configPath = flag.String("config", "", "config file path")
	logLevel   = flag.String("L", "", "log level: debug, info, warn, error, fatal")
	totalRows  = flag.Int64("rows", 1<<22, "number of rows produced by the source")
	modulus    = flag.Int64("modulus", 4, "keep rows whose value is divisible by this modulus")
	limit      = flag.Int64("limit", 0, "stop after this many rows, 0 for no limit")
)

func main() {
	flag.Parse()

	cfg := config.NewConfig()
	if *configPath != "" {
		if err := cfg.Load(*configPath); err != nil {
			fatal("failed to load config", err)
		}
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}
	config.StoreGlobalConfig(cfg)
	if err := logutil.InitLogger(&cfg.Log.LogConfig); err != nil {
		fatal("failed to initialize logger", err)
	}
	logger := logutil.BgLogger()

	metrics.RegisterMetrics()
	if cfg.Status.ReportStatus && cfg.Status.MetricsAddr != "" {
		go serveMetrics(cfg.Status.MetricsAddr, logger)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("benchmark failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	client := executor.NewClientContext()
	client.SetLogger(logger)
	quota, err := cfg.MemQuotaBytes()
	if err != nil {
		return err
	}
	client.SetMemTracker(memory.NewTracker("velora-bench", quota))

	source := executor.NewNumbersScan(*totalRows)
	mod := *modulus
	filter := executor.NewFilter(source.OutputTypes(), func(row chunk.Row) (bool, error) {
		return row.GetInt64(0)%mod == 0, nil
	})
	projection, err := executor.NewProjection(filter.OutputTypes(), []int{0})
	if err != nil {
		return err
	}
	operators := []executor.PhysicalOperator{filter, projection}
	if *limit > 0 {
		operators = append(operators, executor.NewLimit(projection.OutputTypes(), *limit))
	}
	sink := executor.NewRowCountSink(projection.OutputTypes())

	pipelineOpts := []executor.PipelineOption{
		executor.WithVectorSize(cfg.Performance.VectorSize),
	}
	if !cfg.Performance.EnableChunkCache {
		pipelineOpts = append(pipelineOpts, executor.WithChunkCacheDisabled())
	}
	pipeline, err := executor.NewPipeline(client, source, operators, sink, pipelineOpts...)
	if err != nil {
		return err
	}

	statsColl := execdetails.NewRuntimeStatsColl()
	scheduler := executor.NewPipelineScheduler(
		executor.WithConcurrency(cfg.Concurrency()),
		executor.WithStatsCollector(statsColl),
		executor.WithSchedulerChunkPool(chunk.NewPool()),
	)

	start := time.Now()
	if err := scheduler.Run(client, pipeline); err != nil {
		return err
	}
	elapsed := time.Since(start)

	rows := pipeline.SinkState.(*executor.RowCountSinkState).Rows()
	logger.Info("benchmark finished",
		zap.Int64("source-rows", *totalRows),
		zap.Int64("sink-rows", rows),
		zap.Int("concurrency", cfg.Concurrency()),
		zap.Int("vector-size", cfg.Performance.VectorSize),
		zap.Duration("elapsed", elapsed),
		zap.Int64("peak-memory", client.MemTracker().MaxConsumed()))
	fmt.Println(statsColl.String())
	return nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
