package cluster

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultRemoteMemory is the memory of a single remote worker, unless configured otherwise
const DefaultRemoteMemory = 2 * 1024 * 1024 * 1024

// Options describe the capacity of the coordinating machine and of the cluster. An Options
// value is a static snapshot, read once per optimization pass.
type Options struct {
	LocalThreads int     // number of hardware threads of the coordinating machine
	LocalMemory  float64 // maximum memory of the coordinating process, in bytes
	RemoteNodes  int     // number of cluster nodes, 0 if no cluster is available
	RemoteSlots  int     // total number of concurrent worker slots in the cluster
	RemoteMemory float64 // maximum memory of a single remote worker, in bytes
}

// CloneOptions makes a copy of an Options
func CloneOptions(opts *Options) *Options {
	return &Options{
		LocalThreads: opts.LocalThreads,
		LocalMemory:  opts.LocalMemory,
		RemoteNodes:  opts.RemoteNodes,
		RemoteSlots:  opts.RemoteSlots,
		RemoteMemory: opts.RemoteMemory,
	}
}

// EnsureDefaultOptionsValues validates opts and fills in local capacity from the host this
// process runs on, wherever it was not supplied
func EnsureDefaultOptionsValues(opts *Options) error {
	if opts.LocalThreads < 0 || opts.RemoteNodes < 0 || opts.RemoteSlots < 0 {
		return fmt.Errorf("cluster options must not be negative: %+v", *opts)
	}
	if opts.LocalMemory < 0 || opts.RemoteMemory < 0 {
		return fmt.Errorf("cluster memory must not be negative: %+v", *opts)
	}
	if opts.LocalThreads == 0 {
		threads, err := cpu.Counts(true)
		if err != nil {
			return fmt.Errorf("unable to determine local parallelism: %w", err)
		}
		opts.LocalThreads = threads
	}
	if opts.LocalMemory == 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return fmt.Errorf("unable to determine local memory: %w", err)
		}
		opts.LocalMemory = float64(vm.Total)
	}
	if opts.RemoteMemory == 0 {
		opts.RemoteMemory = DefaultRemoteMemory
	}
	if opts.LocalThreads < 1 {
		opts.LocalThreads = 1
	}
	return nil
}

// LocalParallelism implements parfor.Infrastructure
func (o *Options) LocalParallelism() int {
	return o.LocalThreads
}

// LocalMaxMemory implements parfor.Infrastructure
func (o *Options) LocalMaxMemory() float64 {
	return o.LocalMemory
}

// RemoteNodeCount implements parfor.Infrastructure
func (o *Options) RemoteNodeCount() int {
	return o.RemoteNodes
}

// RemoteWorkerSlots implements parfor.Infrastructure
func (o *Options) RemoteWorkerSlots() int {
	return o.RemoteSlots
}

// RemoteMaxMemory implements parfor.Infrastructure
func (o *Options) RemoteMaxMemory() float64 {
	return o.RemoteMemory
}

// IsActive returns true iff a cluster with at least one node and one worker slot is available
func (o *Options) IsActive() bool {
	return o.RemoteNodes > 0 && o.RemoteSlots > 0
}
