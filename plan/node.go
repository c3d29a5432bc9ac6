package plan

import (
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/program"
)

// DefaultNumIterations is assumed for loops whose iteration count cannot be determined
const DefaultNumIterations = 10

// LoopParams are the decision parameters of PARFOR, FOR and WHILE nodes
type LoopParams struct {
	NumIterations   int64
	DataPartitioner parfor.PartitionerKind
	TaskPartitioner parfor.TaskPartitionerKind
	TaskSize        int64
	ResultMerge     parfor.ResultMergeKind
}

// OperatorParams are the decision parameters of OPERATOR nodes
type OperatorParams struct {
	Op                  string
	DataPartitionFormat parfor.PartitionFormat
	TaskSize            int64 // maximum task size for a partitioned result write, 0 if none
}

// CallParams are the decision parameters of FUNCCALL nodes
type CallParams struct {
	Function  program.FunctionKey
	Recursive bool // the callee calls itself, directly or transitively
}

// Node is a node of a plan Tree. Loop and conditional nodes hold their executable block,
// OPERATOR and FUNCCALL nodes hold their Hop and the BasicBlock hosting it.
type Node struct {
	id       int64
	kind     parfor.NodeKind
	execType parfor.ExecType
	k        int
	children []*Node

	Loop     *LoopParams
	Operator *OperatorParams
	Call     *CallParams

	block program.Block
	hop   *program.Hop
	host  *program.BasicBlock
}

// ID returns the id of this Node, unique within its Tree
func (n *Node) ID() int64 {
	return n.id
}

// Kind returns the NodeKind of this Node
func (n *Node) Kind() parfor.NodeKind {
	return n.kind
}

// ExecType returns the placement of this Node
func (n *Node) ExecType() parfor.ExecType {
	return n.execType
}

// SetExecType sets the placement of this Node
func (n *Node) SetExecType(et parfor.ExecType) {
	n.execType = et
}

// K returns the degree of parallelism of this Node
func (n *Node) K() int {
	return n.k
}

// SetK sets the degree of parallelism of this Node
func (n *Node) SetK(k int) {
	n.k = k
}

// Children returns the child Nodes of this Node
func (n *Node) Children() []*Node {
	return n.children
}

// IsLeaf returns true iff this Node has no children
func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// SetChildren replaces the child Nodes of this Node
func (n *Node) SetChildren(children []*Node) {
	n.children = children
}

// AddChild appends a child Node
func (n *Node) AddChild(c *Node) {
	n.children = append(n.children, c)
}

// ReplaceChild swaps a direct child for another Node
func (n *Node) ReplaceChild(old, replacement *Node) bool {
	for i, c := range n.children {
		if c == old {
			n.children[i] = replacement
			return true
		}
	}
	return false
}

// Block returns the executable block of a loop or conditional Node
func (n *Node) Block() program.Block {
	return n.block
}

// Hop returns the Hop of an OPERATOR or FUNCCALL Node
func (n *Node) Hop() *program.Hop {
	return n.hop
}

// Host returns the BasicBlock hosting the Hop of an OPERATOR or FUNCCALL Node
func (n *Node) Host() *program.BasicBlock {
	return n.host
}

// ParFor returns the executable parfor loop of a PARFOR Node
func (n *Node) ParFor() (*program.ParForBlock, bool) {
	if n.kind != parfor.ParForNode {
		return nil, false
	}
	pf, ok := n.block.(*program.ParForBlock)
	return pf, ok
}

// NumIterations returns the iteration count of a loop Node, or 0 for any other Node
func (n *Node) NumIterations() int64 {
	if n.Loop == nil {
		return 0
	}
	return n.Loop.NumIterations
}

// MemEstimate returns the in-memory estimate of an OPERATOR Node's Hop, or 0
func (n *Node) MemEstimate() float64 {
	if n.hop == nil {
		return 0
	}
	return n.hop.MemEstimate
}

// IsOperator returns true iff this Node is an OPERATOR with the given opcode
func (n *Node) IsOperator(op string) bool {
	return n.kind == parfor.OperatorNode && n.Operator != nil && n.Operator.Op == op
}

// ConvertToFor turns a PARFOR Node into a sequential FOR Node backed by fb
func (n *Node) ConvertToFor(fb *program.ForBlock) {
	n.kind = parfor.ForNode
	n.block = fb
	n.k = 1
	n.execType = parfor.ExecLocal
	if n.Loop != nil {
		n.Loop.DataPartitioner = ""
		n.Loop.TaskPartitioner = ""
		n.Loop.ResultMerge = ""
		n.Loop.TaskSize = 0
	}
}
