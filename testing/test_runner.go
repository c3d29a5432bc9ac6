package testing

import (
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/cluster"
	"github.com/go-sif/parfor/cost"
	"github.com/go-sif/parfor/optimizer"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
)

// GiB is a gibibyte, in bytes
const GiB = 1024 * 1024 * 1024

// Cluster creates cluster options for tests, without inspecting the host
func Cluster(threads int, localMemory float64, nodes int, slots int, remoteMemory float64) *cluster.Options {
	return &cluster.Options{
		LocalThreads: threads,
		LocalMemory:  localMemory,
		RemoteNodes:  nodes,
		RemoteSlots:  slots,
		RemoteMemory: remoteMemory,
	}
}

// Loop creates the predicate of a loop over iterVar from 1 to n
func Loop(iterVar string, n int64) program.IterablePredicate {
	return program.IterablePredicate{Var: iterVar, From: program.Lit(1), To: program.Lit(n)}
}

// RowRead creates an indexing operator reading row iterVar of a matrix with cols columns
func RowRead(matrix, iterVar string, cols int64) *program.Hop {
	i := program.NewData(iterVar)
	return program.NewIndexing(program.NewData(matrix), i, i, program.NewLiteral(1), program.NewLiteral(cols))
}

// ColumnRead creates an indexing operator reading column iterVar of a matrix with rows rows
func ColumnRead(matrix, iterVar string, rows int64) *program.Hop {
	i := program.NewData(iterVar)
	return program.NewIndexing(program.NewData(matrix), program.NewLiteral(1), program.NewLiteral(rows), i, i)
}

// RowWrite creates a left-indexing operator writing source into row iterVar of target
func RowWrite(target, iterVar string, cols int64, source *program.Hop) *program.Hop {
	i := program.NewData(iterVar)
	return program.NewLeftIndexing(program.NewData(target), source, i, i, program.NewLiteral(1), program.NewLiteral(cols)).
		AssignedTo(target)
}

// LocalOptimize builds the plan tree of the parfor loop root, held by host, and runs one
// optimization pass over it with the reference cost estimator and the default recompiler
func LocalOptimize(prog *program.Program, host program.Container, root *program.ParForBlock, vars parfor.Variables, opts *cluster.Options, optimizerOpts ...optimizer.Option) (tree *plan.Tree, report *optimizer.Report, err error) {
	// handle panics
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = anErr
			} else {
				panic(r)
			}
		}
	}()

	if vars == nil {
		vars = parfor.VariableMap{}
	}
	tree, err = plan.Build(prog, host, root, vars)
	if err != nil {
		return nil, nil, err
	}
	if err = tree.Validate(); err != nil {
		return tree, nil, err
	}
	o := optimizer.New(opts, cost.NewEstimator(), nil, optimizerOpts...)
	report, err = o.Optimize(tree, vars)
	return tree, report, err
}
