package parfor

import "time"

// OptimizerStatistics facilitates the retrieval of statistics about a single optimization pass
type OptimizerStatistics interface {
	// GetRunID returns the unique id of the optimization pass
	GetRunID() string
	// GetStartTime returns the start time of the optimization pass
	GetStartTime() time.Time
	// GetRuntime returns the running time of the optimization pass
	GetRuntime() time.Duration
	// GetNumEvaluatedPlans returns the number of rewrites evaluated so far
	GetNumEvaluatedPlans() int
	// GetRewriteRuntimes returns the runtime of every evaluated rewrite, in evaluation order
	GetRewriteRuntimes() []time.Duration
}
