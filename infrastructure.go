package parfor

// Infrastructure is a static snapshot of cluster capacity, read once per optimization pass
type Infrastructure interface {
	// LocalParallelism returns the number of hardware threads of the coordinating machine
	LocalParallelism() int
	// LocalMaxMemory returns the maximum memory of the coordinating process, in bytes
	LocalMaxMemory() float64
	// RemoteNodeCount returns the number of cluster nodes
	RemoteNodeCount() int
	// RemoteWorkerSlots returns the total number of concurrent worker slots in the cluster
	RemoteWorkerSlots() int
	// RemoteMaxMemory returns the maximum memory of a single remote worker, in bytes
	RemoteMaxMemory() float64
}
