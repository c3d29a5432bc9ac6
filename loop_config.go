package parfor

// PartitionerKind selects how read-only input matrices are partitioned before a loop runs
type PartitionerKind string

const (
	// PartitionerNone disables data partitioning
	PartitionerNone PartitionerKind = "NONE"
	// PartitionerDistributed partitions inputs with a distributed job
	PartitionerDistributed PartitionerKind = "DISTRIBUTED"
)

// PartitionFormat describes the slices in which a matrix is partitioned
type PartitionFormat string

const (
	// FormatNone indicates that a matrix is not partitioned
	FormatNone PartitionFormat = "NONE"
	// FormatRowWise partitions a matrix into single rows
	FormatRowWise PartitionFormat = "ROW_WISE"
	// FormatColumnWise partitions a matrix into single columns
	FormatColumnWise PartitionFormat = "COLUMN_WISE"
	// FormatCellWise partitions a matrix into single cells
	FormatCellWise PartitionFormat = "CELL_WISE"
	// FormatBlockWise partitions a matrix into blocks (unsupported by the optimizer)
	FormatBlockWise PartitionFormat = "BLOCK_WISE_M_N"
)

// TaskPartitionerKind selects how loop iterations are sliced into tasks
type TaskPartitionerKind string

const (
	// TaskStatic creates one equally sized chunk per worker
	TaskStatic TaskPartitionerKind = "STATIC"
	// TaskFactoring creates geometrically shrinking batches of tasks
	TaskFactoring TaskPartitionerKind = "FACTORING"
	// TaskNaive creates one task per iteration
	TaskNaive TaskPartitionerKind = "NAIVE"
	// TaskFactoringMaxChunk is factoring with an upper bound on the task size
	TaskFactoringMaxChunk TaskPartitionerKind = "FACTORING_CMAX"
)

// ResultMergeKind selects how per-worker partial results are merged
type ResultMergeKind string

const (
	// MergeLocalInMemory merges all results in memory on the coordinating machine
	MergeLocalInMemory ResultMergeKind = "LOCAL_MEM"
	// MergeLocalAutomatic merges locally, choosing in-memory or file-based merge at runtime
	MergeLocalAutomatic ResultMergeKind = "LOCAL_AUTOMATIC"
	// MergeRemote merges results with a distributed job
	MergeRemote ResultMergeKind = "REMOTE"
)

// DefaultReplicationFactor is the replication factor of partitions and exported inputs
// unless the optimizer raises it
const DefaultReplicationFactor = 1

// LoopConfig is the configuration of a single parallel-for loop, committed by the
// optimizer and read by the execution engine afterwards
type LoopConfig struct {
	DataPartitioner       PartitionerKind     // how read-only inputs are partitioned
	ExecMode              ExecType            // LOCAL or REMOTE
	DegreeOfParallelism   int                 // number of concurrent workers
	TaskPartitioner       TaskPartitionerKind // how iterations are sliced into tasks
	TaskSize              int64               // maximum task size, 0 if unbounded
	WorkerReuse           bool                // whether workers and their instruction caches may be reused
	ResultMerge           ResultMergeKind     // how partial results are merged
	PartitionReplication  int                 // replication factor of partitioned inputs
	ExportReplication     int                 // replication factor of exported inputs
	RecompileMemoryBudget float64             // per-worker memory ceiling for runtime recompilation, 0 if unset
	ColocatedMatrix       string              // partitioned matrix used for colocated scheduling, empty if none
}

// DefaultLoopConfig returns the configuration of a loop which has not been optimized
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		DataPartitioner:      PartitionerNone,
		ExecMode:             ExecLocal,
		DegreeOfParallelism:  1,
		TaskPartitioner:      TaskFactoring,
		WorkerReuse:          true,
		ResultMerge:          MergeLocalAutomatic,
		PartitionReplication: DefaultReplicationFactor,
		ExportReplication:    DefaultReplicationFactor,
	}
}
