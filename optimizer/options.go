package optimizer

import (
	"github.com/go-sif/parfor/internal/metrics"
)

const (
	// ProblemSizeThresholdRemote is the number of top-level iterations above which a loop is large
	ProblemSizeThresholdRemote = 100
	// ProblemSizeThresholdPartitioning is the number of iterations required for data partitioning
	ProblemSizeThresholdPartitioning = 2
	// MaxReplicationFactorPartitioning bounds the replication factor of partitioned inputs
	MaxReplicationFactorPartitioning = 5
	// MaxReplicationFactorExport bounds the replication factor of exported inputs
	MaxReplicationFactorExport = 5
	// FunctionUnfoldPrefix prefixes the name of functions cloned to break recursion
	FunctionUnfoldPrefix = "__unfold_"
	// NestedIndexVar is the iteration variable of outer loops created by nested parallelism
	NestedIndexVar = "__pfidx"
	// sparseRowCapacity is the initial capacity of a sparse row, in cells
	sparseRowCapacity = 4
)

// Options configure an Optimizer
type Options struct {
	ParallelismFactor   float64          // multiplier applied to local and remote parallelism
	MemoryUtilization   float64          // fraction of the maximum memory available to operators
	DistributedPlatform bool             // iff true, operators may be recompiled for partitioned data
	NestedParallelism   bool             // iff true, the nested parallelism rewrite is applied
	ParallelResultMerge bool             // iff true, results are merged by several threads
	AllowCopyCellFiles  bool             // iff true, sparse cell results may be merged by copying files
	CPThreshold         int64            // dimension threshold for in-memory operations
	Metrics             *metrics.Metrics // counters of rewrite outcomes, nil to disable
}

// Option modifies Options
type Option func(*Options)

// DefaultOptions returns the Options of an Optimizer created without any Option
func DefaultOptions() *Options {
	return &Options{
		ParallelismFactor:   1.0,
		MemoryUtilization:   0.7,
		DistributedPlatform: true,
		NestedParallelism:   false,
		ParallelResultMerge: false,
		AllowCopyCellFiles:  true,
		CPThreshold:         2000,
	}
}

func ensureDefaultOptionsValues(opts *Options) {
	defaults := DefaultOptions()
	if opts.ParallelismFactor <= 0 {
		opts.ParallelismFactor = defaults.ParallelismFactor
	}
	if opts.MemoryUtilization <= 0 || opts.MemoryUtilization > 1 {
		opts.MemoryUtilization = defaults.MemoryUtilization
	}
	if opts.CPThreshold <= 0 {
		opts.CPThreshold = defaults.CPThreshold
	}
}

// WithParallelismFactor sets the multiplier applied to local and remote parallelism
func WithParallelismFactor(f float64) Option {
	return func(o *Options) { o.ParallelismFactor = f }
}

// WithMemoryUtilization sets the fraction of the maximum memory available to operators
func WithMemoryUtilization(f float64) Option {
	return func(o *Options) { o.MemoryUtilization = f }
}

// WithDistributedPlatform enables or disables recompilation for partitioned data
func WithDistributedPlatform(enabled bool) Option {
	return func(o *Options) { o.DistributedPlatform = enabled }
}

// WithNestedParallelism enables or disables the nested parallelism rewrite
func WithNestedParallelism(enabled bool) Option {
	return func(o *Options) { o.NestedParallelism = enabled }
}

// WithParallelResultMerge enables or disables multi-threaded result merge
func WithParallelResultMerge(enabled bool) Option {
	return func(o *Options) { o.ParallelResultMerge = enabled }
}

// WithAllowCopyCellFiles enables or disables merging sparse cell results by file copy
func WithAllowCopyCellFiles(enabled bool) Option {
	return func(o *Options) { o.AllowCopyCellFiles = enabled }
}

// WithCPThreshold sets the dimension threshold for in-memory operations
func WithCPThreshold(threshold int64) Option {
	return func(o *Options) { o.CPThreshold = threshold }
}

// WithMetrics sets the counters updated by the Optimizer
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}
