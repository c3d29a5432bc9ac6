package stats

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

// RunStatistics contains statistics about a single optimization pass
type RunStatistics struct {
	runID             string
	started           bool
	finished          bool
	startTime         time.Time
	totalRuntime      time.Duration
	numEvaluatedPlans int
	rewriteNames      []string
	rewriteRuntimes   []time.Duration

	// temp vars
	currentRewriteStartTime time.Time
}

// CreateRunStatistics is a factory for RunStatistics, assigning a unique run id
func CreateRunStatistics() (*RunStatistics, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID: %w", err)
	}
	return &RunStatistics{runID: id.String()}, nil
}

// Start triggers statistics tracking, if it hasn't been started already
func (rs *RunStatistics) Start() {
	if !rs.started {
		rs.started = true
		rs.startTime = time.Now()
		rs.rewriteNames = make([]string, 0)
		rs.rewriteRuntimes = make([]time.Duration, 0)
	}
}

// Finish completes statistics tracking
func (rs *RunStatistics) Finish() {
	rs.totalRuntime = time.Since(rs.startTime)
	rs.finished = true
}

// StartRewrite tracks the beginning of a rewrite
func (rs *RunStatistics) StartRewrite() {
	rs.currentRewriteStartTime = time.Now()
}

// EndRewrite tracks the end of a rewrite, counting it as one evaluated plan
func (rs *RunStatistics) EndRewrite(name string) time.Duration {
	d := time.Since(rs.currentRewriteStartTime)
	rs.rewriteNames = append(rs.rewriteNames, name)
	rs.rewriteRuntimes = append(rs.rewriteRuntimes, d)
	rs.numEvaluatedPlans++
	return d
}

// GetRunID returns the unique id of the optimization pass
func (rs *RunStatistics) GetRunID() string {
	return rs.runID
}

// GetStartTime returns the start time of the optimization pass
func (rs *RunStatistics) GetStartTime() time.Time {
	return rs.startTime
}

// GetRuntime returns the running time of the optimization pass
func (rs *RunStatistics) GetRuntime() time.Duration {
	if rs.finished {
		return rs.totalRuntime
	}
	return time.Since(rs.startTime)
}

// GetNumEvaluatedPlans returns the number of rewrites evaluated so far
func (rs *RunStatistics) GetNumEvaluatedPlans() int {
	return rs.numEvaluatedPlans
}

// GetRewriteNames returns the names of all evaluated rewrites, in evaluation order
func (rs *RunStatistics) GetRewriteNames() []string {
	return rs.rewriteNames
}

// GetRewriteRuntimes returns the runtime of every evaluated rewrite, in evaluation order
func (rs *RunStatistics) GetRewriteRuntimes() []time.Duration {
	return rs.rewriteRuntimes
}
