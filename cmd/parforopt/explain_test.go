package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	flatScenario        = "../../internal/scenario/testdata/flat.yaml"
	partitionedScenario = "../../internal/scenario/testdata/partitioned.yaml"
	recursiveScenario   = "../../internal/scenario/testdata/recursive.yaml"
)

func runCommand(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// requireSetting asserts that a loop configuration table of out holds value for setting
func requireSetting(t *testing.T, out, setting, value string) {
	pattern := regexp.MustCompile(regexp.QuoteMeta(setting) + `\s+\|\s+` + regexp.QuoteMeta(value) + `\s+\|`)
	require.Regexp(t, pattern, out)
}

func TestExplain(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	out, err := runCommand("explain", flatScenario, partitionedScenario)
	require.NoError(t, err)

	flat := strings.Index(out, "== flat")
	partitioned := strings.Index(out, "== partitioned-rows")
	require.True(t, flat >= 0 && partitioned > flat, out)
	require.Contains(t, out, "cluster: 16 threads, 4.0 GiB local; 4 nodes, 8 slots, 2.0 GiB per worker")

	flatOut, partitionedOut := out[flat:partitioned], out[partitioned:]
	require.Contains(t, flatOut, "-- parfor over i")
	require.Contains(t, flatOut, "14 plans, changed")
	requireSetting(t, flatOut, "exec mode", "LOCAL")
	requireSetting(t, flatOut, "degree of parallelism", "16")
	requireSetting(t, flatOut, "task partitioner", "FACTORING")

	requireSetting(t, partitionedOut, "data partitioner", "DISTRIBUTED")
	requireSetting(t, partitionedOut, "exec mode", "REMOTE")
	requireSetting(t, partitionedOut, "degree of parallelism", "8")
	requireSetting(t, partitionedOut, "export replication", "4")
	requireSetting(t, partitionedOut, "colocated matrix", "A")
	require.Contains(t, partitionedOut, "dpf=ROW_WISE")
}

func TestExplainRecursive(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	out, err := runCommand("explain", recursiveScenario)
	require.NoError(t, err)
	require.Contains(t, out, "== recursive")
	require.Contains(t, out, ".defaultNS::f recursive")
	// the loop within the recursive function runs sequentially
	require.Regexp(t, `\sFOR \(\d+\)`, out)
	requireSetting(t, out, "degree of parallelism", "4")
}

func TestExplainEnvironment(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	t.Setenv("PARFOR_REMOTE_NODES", "0")

	out, err := runCommand("explain", partitionedScenario)
	require.NoError(t, err)
	require.Contains(t, out, "0 nodes, 8 slots")
	requireSetting(t, out, "exec mode", "LOCAL")
}

func TestExplainConfigFile(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	dir := t.TempDir()
	config := filepath.Join(dir, "parforopt.yaml")
	require.NoError(t, os.WriteFile(config, []byte("distributed-platform: false\n"), 0600))

	out, err := runCommand("explain", "--config", config, partitionedScenario)
	require.NoError(t, err)
	requireSetting(t, out, "data partitioner", "NONE")
	requireSetting(t, out, "exec mode", "REMOTE")

	// flags take precedence over the config file
	out, err = runCommand("explain", "--config", config, "--distributed-platform=true", partitionedScenario)
	require.NoError(t, err)
	requireSetting(t, out, "data partitioner", "DISTRIBUTED")
}

func TestExplainClusterStatus(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	dir := t.TempDir()
	status := filepath.Join(dir, "metrics.json")
	require.NoError(t, os.WriteFile(status,
		[]byte(`{"clusterMetrics": {"activeNodes": 2, "totalVirtualCores": 4, "totalMB": 8192}}`), 0600))

	out, err := runCommand("explain", "--cluster-status", status, partitionedScenario)
	require.NoError(t, err)
	require.Contains(t, out, "2 nodes, 4 slots, 2.0 GiB per worker")
	requireSetting(t, out, "degree of parallelism", "4")

	// explicit flags override the status document
	out, err = runCommand("explain", "--cluster-status", status, "--remote-slots", "2", partitionedScenario)
	require.NoError(t, err)
	require.Contains(t, out, "2 nodes, 2 slots")
	requireSetting(t, out, "degree of parallelism", "2")
}

func TestExplainMetrics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	out, err := runCommand("explain", "--metrics", flatScenario, partitionedScenario)
	require.NoError(t, err)
	require.Contains(t, out, "== metrics")
	require.Regexp(t, `parfor_optimizer_placements_total\s+\|\s+placement=LOCAL\s+\|\s+1\s`, out)
	require.Regexp(t, `parfor_optimizer_placements_total\s+\|\s+placement=REMOTE\s+\|\s+1\s`, out)
}

func TestExplainInvalidScenario(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("program:\n  - for: {var: i, to: 10}\n"), 0600))

	_, err := runCommand("explain", "--parallelism", "1", flatScenario, invalid, partitionedScenario)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no parfor loop")

	_, err = runCommand("explain", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unable to read scenario")
}

func TestExplainRequiresScenario(t *testing.T) {
	_, err := runCommand("explain")
	require.Error(t, err)
}
