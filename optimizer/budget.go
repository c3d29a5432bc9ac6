package optimizer

import (
	"math"

	"github.com/go-sif/parfor"
)

// Budget is the parallelism and memory budget of one optimization pass. It is computed once,
// before the first rewrite, and never modified afterwards.
type Budget struct {
	LocalParallelism       int     // hardware threads of the coordinating machine
	LocalMaxParallelism    int     // local workers, if the loop body has only local operators
	LocalMaxParallelismMix int     // local workers, if the loop body also has remote operators
	RemoteNodes            int     // cluster nodes
	RemoteSlots            int     // concurrent worker slots in the cluster
	RemoteMaxParallelism   int     // remote workers
	LocalMemory            float64 // memory available to a local worker, in bytes
	RemoteMemory           float64 // memory available to a remote worker, in bytes
}

// NewBudget computes the Budget of an optimization pass from a snapshot of the infrastructure
func NewBudget(infra parfor.Infrastructure, opts *Options) Budget {
	lk := infra.LocalParallelism()
	rk := infra.RemoteWorkerSlots()
	return Budget{
		LocalParallelism:       lk,
		LocalMaxParallelism:    int(math.Ceil(opts.ParallelismFactor * float64(lk))),
		LocalMaxParallelismMix: int(math.Ceil(opts.ParallelismFactor * float64(lk))),
		RemoteNodes:            infra.RemoteNodeCount(),
		RemoteSlots:            rk,
		RemoteMaxParallelism:   int(math.Ceil(opts.ParallelismFactor * float64(rk))),
		LocalMemory:            opts.MemoryUtilization * infra.LocalMaxMemory(),
		RemoteMemory:           opts.MemoryUtilization * infra.RemoteMaxMemory(),
	}
}

// MemoryFor returns the local memory budget if local is true, else the remote one
func (b Budget) MemoryFor(local bool) float64 {
	if local {
		return b.LocalMemory
	}
	return b.RemoteMemory
}

// ClusterActive returns true iff the cluster has at least one node and one worker slot
func (b Budget) ClusterActive() bool {
	return b.RemoteNodes > 0 && b.RemoteSlots > 0
}

// maxParallelismFor returns how many workers fit into mem, given a per-worker estimate,
// bounded by limit and floored at 1
func maxParallelismFor(limit int, mem, estimate float64) int {
	res := limit
	if estimate > 0 {
		if fit := math.Floor(mem / estimate); fit < float64(res) {
			res = int(fit)
		}
	}
	if res < 1 {
		res = 1
	}
	return res
}
