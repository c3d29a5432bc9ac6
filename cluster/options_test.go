package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultOptionsValues(t *testing.T) {
	opts := &Options{RemoteNodes: 4, RemoteSlots: 16}
	require.NoError(t, EnsureDefaultOptionsValues(opts))
	require.GreaterOrEqual(t, opts.LocalParallelism(), 1)
	require.Greater(t, opts.LocalMaxMemory(), 0.0)
	require.Equal(t, float64(DefaultRemoteMemory), opts.RemoteMaxMemory())
	require.Equal(t, 4, opts.RemoteNodeCount())
	require.Equal(t, 16, opts.RemoteWorkerSlots())
	require.True(t, opts.IsActive())

	fixed := &Options{LocalThreads: 3, LocalMemory: 1024, RemoteMemory: 2048}
	require.NoError(t, EnsureDefaultOptionsValues(fixed))
	require.Equal(t, 3, fixed.LocalThreads)
	require.Equal(t, 1024.0, fixed.LocalMemory)
	require.Equal(t, 2048.0, fixed.RemoteMemory)
	require.False(t, fixed.IsActive())

	require.Error(t, EnsureDefaultOptionsValues(&Options{RemoteNodes: -1}))
	require.Error(t, EnsureDefaultOptionsValues(&Options{LocalMemory: -1}))
}

func TestCloneOptions(t *testing.T) {
	opts := &Options{LocalThreads: 8, LocalMemory: 1, RemoteNodes: 2, RemoteSlots: 4, RemoteMemory: 3}
	clone := CloneOptions(opts)
	require.Equal(t, opts, clone)
	clone.RemoteNodes = 5
	require.Equal(t, 2, opts.RemoteNodes)
}

func TestParseStatus(t *testing.T) {
	opts := &Options{}
	err := ParseStatus([]byte(`{"clusterMetrics": {"activeNodes": 4, "totalVirtualCores": 64, "totalMB": 262144}}`), opts)
	require.NoError(t, err)
	require.Equal(t, 4, opts.RemoteNodes)
	require.Equal(t, 64, opts.RemoteSlots)
	require.Equal(t, 4096.0*1024*1024, opts.RemoteMemory)

	opts = &Options{RemoteMemory: 7}
	require.NoError(t, ParseStatus([]byte(`{"clusterMetrics": {"activeNodes": 0, "totalVirtualCores": 0}}`), opts))
	require.False(t, opts.IsActive())
	require.Equal(t, 7.0, opts.RemoteMemory)

	require.Error(t, ParseStatus([]byte(`{"clusterMetrics": `), opts))
	require.Error(t, ParseStatus([]byte(`{"apps": {}}`), opts))
	require.Error(t, ParseStatus([]byte(`{"clusterMetrics": {"activeNodes": 4}}`), opts))
	require.Error(t, ParseStatus([]byte(`{"clusterMetrics": {"activeNodes": -4, "totalVirtualCores": 1}}`), opts))
}
