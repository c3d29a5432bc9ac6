package plan

import (
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/errors"
	"github.com/go-sif/parfor/program"
)

// Walk visits n and all of its descendants in pre-order. Returning false from fn skips the
// descendants of the visited Node.
func (n *Node) Walk(fn func(*Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(next) {
			continue
		}
		for i := len(next.children) - 1; i >= 0; i-- {
			stack = append(stack, next.children[i])
		}
	}
}

// IsLocalOnly returns true iff no Node in the subtree of n is placed remotely
func (n *Node) IsLocalOnly() bool {
	res := true
	n.Walk(func(c *Node) bool {
		if c.execType == parfor.ExecRemote {
			res = false
		}
		return res
	})
	return res
}

// HasNestedParallelism returns true iff there is a PARFOR Node strictly below n
func (n *Node) HasNestedParallelism() bool {
	for _, c := range n.children {
		found := false
		c.Walk(func(d *Node) bool {
			if d.kind == parfor.ParForNode {
				found = true
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// HasNestedPartitionReads returns true iff a partitioned read occurs within a loop nested below n
func (n *Node) HasNestedPartitionReads() bool {
	return n.hasNestedPartitionReads(false)
}

func (n *Node) hasNestedPartitionReads(nested bool) bool {
	if n.IsLeaf() {
		return nested && n.Operator != nil &&
			n.Operator.DataPartitionFormat != "" && n.Operator.DataPartitionFormat != parfor.FormatNone
	}
	for _, c := range n.children {
		if c.kind.IsLoop() {
			nested = true
		}
		if c.hasNestedPartitionReads(nested) {
			return true
		}
	}
	return false
}

// Operators returns all OPERATOR Nodes within the subtree of n placed at et, in pre-order
func (n *Node) Operators(et parfor.ExecType) []*Node {
	res := make([]*Node, 0)
	n.Walk(func(c *Node) bool {
		if c.kind == parfor.OperatorNode && c.execType == et {
			res = append(res, c)
		}
		return true
	})
	return res
}

// TotalK returns the maximum number of concurrent workers along any path below and including n
func (n *Node) TotalK() int {
	maxChild := 1
	for _, c := range n.children {
		if ck := c.TotalK(); ck > maxChild {
			maxChild = ck
		}
	}
	k := n.k
	if k < 1 {
		k = 1
	}
	return k * maxChild
}

// MaxTaskSize returns the smallest maximum task size recorded on any partitioned result write
// below n, bounded by numIterations
func (n *Node) MaxTaskSize(numIterations int64) int64 {
	res := numIterations
	n.Walk(func(c *Node) bool {
		if c.Operator != nil && c.Operator.TaskSize > 0 && c.Operator.TaskSize < res {
			res = c.Operator.TaskSize
		}
		return true
	})
	if res < 1 {
		res = 1
	}
	return res
}

// MaxProblemSize returns the largest product of iteration counts along any path below and
// including n
func (n *Node) MaxProblemSize() int64 {
	var maxChild int64 = 1
	for _, c := range n.children {
		if cs := c.MaxProblemSize(); cs > maxChild {
			maxChild = cs
		}
	}
	if n.kind.IsLoop() && n.Loop != nil && n.Loop.NumIterations > 0 {
		return n.Loop.NumIterations * maxChild
	}
	return maxChild
}

// SetSerial makes n and every PARFOR Node below it sequential and local, both in the plan
// and in the executable loops
func (n *Node) SetSerial() {
	n.Walk(func(c *Node) bool {
		if c.kind == parfor.ParForNode {
			c.k = 1
			c.execType = parfor.ExecLocal
			if pf, ok := c.ParFor(); ok {
				pf.Config.DegreeOfParallelism = 1
				pf.Config.ExecMode = parfor.ExecLocal
			}
		}
		return true
	})
}

// ContainsBlock returns true iff the executable parfor loop pf is held by a Node within the
// subtree of n
func (n *Node) ContainsBlock(pf *program.ParForBlock) bool {
	found := false
	n.Walk(func(c *Node) bool {
		if c.block == program.Block(pf) {
			found = true
		}
		return !found
	})
	return found
}

// ParForBlocks returns the executable parfor loops held by Nodes within the subtree of n,
// in pre-order and without duplicates
func (n *Node) ParForBlocks() []*program.ParForBlock {
	seen := make(map[*program.ParForBlock]bool)
	res := make([]*program.ParForBlock, 0)
	n.Walk(func(c *Node) bool {
		if pf, ok := c.ParFor(); ok && !seen[pf] {
			seen[pf] = true
			res = append(res, pf)
		}
		return true
	})
	return res
}

// Parent returns the parent of n within this Tree
func (t *Tree) Parent(n *Node) (*Node, bool) {
	var parent *Node
	t.root.Walk(func(c *Node) bool {
		for _, cc := range c.children {
			if cc == n {
				parent = c
			}
		}
		return parent == nil
	})
	return parent, parent != nil
}

// Container returns the executable Container holding the block of n
func (t *Tree) Container(n *Node) (program.Container, error) {
	if n == t.root {
		return t.host, nil
	}
	parent, ok := t.Parent(n)
	if !ok {
		return nil, errors.MissingBlockError{NodeID: n.id, Reason: "node is not part of the tree"}
	}
	if parent.kind == parfor.FuncCallNode {
		fb, ok := t.prog.Function(parent.Call.Function)
		if !ok {
			return nil, errors.MissingFunctionError{Key: parent.Call.Function.String()}
		}
		return fb, nil
	}
	c, ok := parent.block.(program.Container)
	if !ok {
		return nil, errors.MissingBlockError{NodeID: parent.id, Reason: "parent has no child blocks"}
	}
	return c, nil
}

// ReplaceBlock swaps the executable block of n for replacement, both within its Container and
// within the Node. old is returned so callers can update other Nodes sharing it.
func (t *Tree) ReplaceBlock(n *Node, replacement program.Block) (program.Block, error) {
	c, err := t.Container(n)
	if err != nil {
		return nil, err
	}
	old := n.block
	if !c.ReplaceChild(old, replacement) {
		return nil, errors.MissingBlockError{NodeID: n.id, Reason: "block is not a child of its container"}
	}
	n.block = replacement
	return old, nil
}
