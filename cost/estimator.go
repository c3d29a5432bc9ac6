// Package cost provides a reference static cost model for plan trees. It reads only the size
// metadata already attached to operators and never performs I/O.
package cost

import (
	"math"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/plan"
)

const (
	// DefaultRemoteFootprint is the memory an operator compiled to a distributed job occupies on
	// the coordinating machine
	DefaultRemoteFootprint = 32 * 1024 * 1024
	// DefaultRemoteLatency is the execution cost of a distributed job, relative to a local operator
	DefaultRemoteLatency = 20
)

// Estimator is a static cost model over plan trees
type Estimator struct {
	RemoteFootprint float64
	RemoteLatency   float64
}

// NewEstimator creates an Estimator with default constants
func NewEstimator() *Estimator {
	return &Estimator{RemoteFootprint: DefaultRemoteFootprint, RemoteLatency: DefaultRemoteLatency}
}

// Estimate computes the cost of the subtree rooted at n. If forced is set, every operator is
// assumed to be placed there instead of at its current placement.
func (e *Estimator) Estimate(measure parfor.Measure, n *plan.Node, forced parfor.ExecType) float64 {
	if n.IsLeaf() {
		return e.LeafEstimate(measure, n, forced)
	}
	switch measure {
	case parfor.ExecTime:
		return e.execTime(n, forced)
	default:
		return e.memory(n, forced)
	}
}

// LeafEstimate computes the cost of a single leaf Node
func (e *Estimator) LeafEstimate(measure parfor.Measure, n *plan.Node, forced parfor.ExecType) float64 {
	if n.Kind() != parfor.OperatorNode {
		return 0
	}
	et := n.ExecType()
	if forced != parfor.ExecUnset {
		et = forced
	}
	switch measure {
	case parfor.ExecTime:
		if et == parfor.ExecRemote {
			return e.RemoteLatency
		}
		return 1
	default:
		if et == parfor.ExecRemote {
			return e.RemoteFootprint
		}
		return n.MemEstimate()
	}
}

func (e *Estimator) memory(n *plan.Node, forced parfor.ExecType) float64 {
	var res float64
	for _, c := range n.Children() {
		res = math.Max(res, e.Estimate(parfor.MemoryUsage, c, forced))
	}
	if n.Kind() == parfor.ParForNode && n.ExecType() != parfor.ExecRemote && n.K() > 1 {
		res *= float64(n.K())
	}
	return res
}

func (e *Estimator) execTime(n *plan.Node, forced parfor.ExecType) float64 {
	var res float64
	for _, c := range n.Children() {
		res += e.Estimate(parfor.ExecTime, c, forced)
	}
	if n.Kind().IsLoop() {
		res *= float64(n.NumIterations())
		if n.Kind() == parfor.ParForNode && n.K() > 1 {
			res /= float64(n.K())
		}
	}
	return res
}
