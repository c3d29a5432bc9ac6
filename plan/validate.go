package plan

import (
	"fmt"

	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/errors"
	"github.com/go-sif/parfor/program"
	multierror "github.com/hashicorp/go-multierror"
)

// Validate checks the structural invariants of this Tree, reporting every violation
func (t *Tree) Validate() error {
	var errs *multierror.Error
	if t.root == nil {
		return errors.InvalidTreeError{Reason: "tree has no root"}
	}
	if !t.root.kind.IsLoop() || t.root.kind == parfor.WhileNode {
		errs = multierror.Append(errs, errors.InvalidTreeError{NodeID: t.root.id, Reason: "root is not a for or parfor loop"})
	}
	found := false
	for _, c := range t.host.Children() {
		if c == t.root.block {
			found = true
		}
	}
	if !found {
		errs = multierror.Append(errs, errors.MissingBlockError{NodeID: t.root.id, Reason: "root block is not a child of the host"})
	}
	ids := make(map[int64]bool)
	t.root.Walk(func(n *Node) bool {
		if ids[n.id] {
			errs = multierror.Append(errs, errors.InvalidTreeError{NodeID: n.id, Reason: "duplicate node id"})
		}
		ids[n.id] = true
		if err := n.validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
		return true
	})
	return errs.ErrorOrNil()
}

func (n *Node) validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.InvalidTreeError{NodeID: n.id, Reason: fmt.Sprintf(format, args...)}
	}
	switch n.kind {
	case parfor.OperatorNode:
		if !n.IsLeaf() {
			return invalid("operator has %d children", len(n.children))
		}
		if n.hop == nil || n.host == nil || n.Operator == nil {
			return errors.MissingBlockError{NodeID: n.id, Reason: "operator without hop"}
		}
	case parfor.FuncCallNode:
		if n.hop == nil || n.host == nil || n.Call == nil {
			return errors.MissingBlockError{NodeID: n.id, Reason: "function call without hop"}
		}
		if n.hop.Function != n.Call.Function {
			return invalid("calls %s but its hop calls %s", n.Call.Function, n.hop.Function)
		}
	case parfor.ParForNode:
		if _, ok := n.block.(*program.ParForBlock); !ok || n.Loop == nil {
			return errors.MissingBlockError{NodeID: n.id, Reason: "parfor node without parfor loop"}
		}
	case parfor.ForNode:
		if _, ok := n.block.(*program.ForBlock); !ok || n.Loop == nil {
			return errors.MissingBlockError{NodeID: n.id, Reason: "for node without for loop"}
		}
		if n.k != 1 {
			return invalid("sequential loop with degree of parallelism %d", n.k)
		}
	case parfor.WhileNode:
		if _, ok := n.block.(*program.WhileBlock); !ok {
			return errors.MissingBlockError{NodeID: n.id, Reason: "while node without while loop"}
		}
	case parfor.IfNode:
		if _, ok := n.block.(*program.IfBlock); !ok {
			return errors.MissingBlockError{NodeID: n.id, Reason: "if node without conditional"}
		}
	default:
		return errors.UnsupportedNodeError{NodeID: n.id, Kind: string(n.kind), Operation: "validate"}
	}
	return nil
}
