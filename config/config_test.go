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
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	conf := NewConfig()
	require.Equal(t, "info", conf.Log.Level)
	require.Equal(t, 1024, conf.Performance.VectorSize)
	require.True(t, conf.Performance.EnableChunkCache)
	require.NoError(t, conf.Validate())
	require.Equal(t, runtime.GOMAXPROCS(0), conf.Concurrency())
}

func TestLoadFromFile(t *testing.T) {
	confFile := filepath.Join(t.TempDir(), "velora.toml")
	content := `
[log]
level = "warn"
format = "json"

[status]
report-status = true
metrics-addr = "127.0.0.1:10080"

[performance]
executor-concurrency = 4
vector-size = 256
enable-chunk-cache = false
mem-quota = "1GB"
`
	require.NoError(t, os.WriteFile(confFile, []byte(content), 0o644))

	conf := NewConfig()
	require.NoError(t, conf.Load(confFile))
	require.NoError(t, conf.Validate())
	require.Equal(t, "warn", conf.Log.Level)
	require.Equal(t, "json", conf.Log.Format)
	require.True(t, conf.Status.ReportStatus)
	require.Equal(t, "127.0.0.1:10080", conf.Status.MetricsAddr)
	require.Equal(t, 4, conf.Concurrency())
	require.Equal(t, 256, conf.Performance.VectorSize)
	require.False(t, conf.Performance.EnableChunkCache)

	quota, err := conf.MemQuotaBytes()
	require.NoError(t, err)
	require.Equal(t, int64(1<<30), quota)
}

func TestValidate(t *testing.T) {
	conf := NewConfig()
	conf.Performance.VectorSize = 0
	require.Error(t, conf.Validate())

	conf = NewConfig()
	conf.Performance.ExecutorConcurrency = -1
	require.Error(t, conf.Validate())

	conf = NewConfig()
	conf.Performance.MemQuota = "not-a-size"
	require.Error(t, conf.Validate())
}

func TestMemQuotaBytes(t *testing.T) {
	conf := NewConfig()
	quota, err := conf.MemQuotaBytes()
	require.NoError(t, err)
	require.Equal(t, int64(0), quota)

	conf.Performance.MemQuota = "512MB"
	quota, err = conf.MemQuotaBytes()
	require.NoError(t, err)
	require.Equal(t, int64(512<<20), quota)
}

func TestGlobalConfig(t *testing.T) {
	original := GetGlobalConfig()
	defer StoreGlobalConfig(original)

	conf := NewConfig()
	conf.Performance.VectorSize = 123
	StoreGlobalConfig(conf)
	require.Equal(t, 123, GetGlobalConfig().Performance.VectorSize)
}
