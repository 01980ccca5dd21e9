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

package config

import (
	"runtime"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/pingcap/errors"

	"github.com/veloradb/velora/util/logutil"
)

// Config contains configuration options.
type Config struct {
	Log         Log         `toml:"log" json:"log"`
	Status      Status      `toml:"status" json:"status"`
	Performance Performance `toml:"performance" json:"performance"`
}

// Log is the log section of config.
type Log struct {
	logutil.LogConfig
}

// Status is the status section of the config.
type Status struct {
	ReportStatus bool   `toml:"report-status" json:"report-status"`
	MetricsAddr  string `toml:"metrics-addr" json:"metrics-addr"`
}

// Performance is the performance section of the config.
type Performance struct {
	// ExecutorConcurrency is the number of pipeline executors run in
	// parallel for one pipeline. 0 means GOMAXPROCS.
	ExecutorConcurrency int `toml:"executor-concurrency" json:"executor-concurrency"`
	// VectorSize is the number of rows per chunk.
	VectorSize int `toml:"vector-size" json:"vector-size"`
	// EnableChunkCache toggles coalescing of sparse post-filter chunks.
	EnableChunkCache bool `toml:"enable-chunk-cache" json:"enable-chunk-cache"`
	// MemQuota bounds the memory tracked per query, in a human readable
	// form such as "1GB". Empty means no limit.
	MemQuota string `toml:"mem-quota" json:"mem-quota"`
}

var defaultConf = Config{
	Log: Log{
		LogConfig: *logutil.NewLogConfig(logutil.DefaultLogLevel, logutil.DefaultLogFormat),
	},
	Status: Status{
		ReportStatus: false,
		MetricsAddr:  "",
	},
	Performance: Performance{
		ExecutorConcurrency: 0,
		VectorSize:          1024,
		EnableChunkCache:    true,
	},
}

var globalConf atomic.Pointer[Config]

func init() {
	conf := defaultConf
	globalConf.Store(&conf)
}

// NewConfig creates a new config instance with default value.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// GetGlobalConfig returns the global configuration for this server.
// It should store configuration from command line and configuration file.
// Other parts of the system can read the global configuration use this function.
func GetGlobalConfig() *Config {
	return globalConf.Load()
}

// StoreGlobalConfig stores a new config to the globalConf.
func StoreGlobalConfig(conf *Config) {
	globalConf.Store(conf)
}

// Load loads config options from a toml file.
func (c *Config) Load(confFile string) error {
	_, err := toml.DecodeFile(confFile, c)
	return errors.Trace(err)
}

// Validate checks the config for invalid combinations.
func (c *Config) Validate() error {
	if c.Performance.VectorSize <= 0 {
		return errors.Errorf("performance.vector-size must be positive, got %d", c.Performance.VectorSize)
	}
	if c.Performance.ExecutorConcurrency < 0 {
		return errors.Errorf("performance.executor-concurrency must not be negative, got %d", c.Performance.ExecutorConcurrency)
	}
	if _, err := c.MemQuotaBytes(); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// MemQuotaBytes parses the configured memory quota. 0 means no limit.
func (c *Config) MemQuotaBytes() (int64, error) {
	if c.Performance.MemQuota == "" {
		return 0, nil
	}
	quota, err := units.RAMInBytes(c.Performance.MemQuota)
	if err != nil {
		return 0, errors.Annotatef(err, "performance.mem-quota %q", c.Performance.MemQuota)
	}
	return quota, nil
}

// Concurrency resolves the configured executor concurrency.
func (c *Config) Concurrency() int {
	if c.Performance.ExecutorConcurrency > 0 {
		return c.Performance.ExecutorConcurrency
	}
	return runtime.GOMAXPROCS(0)
}
