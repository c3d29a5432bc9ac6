package plan

import (
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/errors"
	"github.com/go-sif/parfor/program"
)

// Tree is the plan of a single parfor loop: a decision tree mirroring the loop and function
// nesting below it. Its root's block lives in the Container Host.
type Tree struct {
	root   *Node
	prog   *program.Program
	host   program.Container
	nextID int64
}

// Root returns the root Node of this Tree
func (t *Tree) Root() *Node {
	return t.root
}

// Program returns the Program this Tree was built from
func (t *Tree) Program() *program.Program {
	return t.prog
}

// Host returns the Container holding the root's executable block
func (t *Tree) Host() program.Container {
	return t.host
}

func (t *Tree) newNode(kind parfor.NodeKind) *Node {
	t.nextID++
	return &Node{id: t.nextID, kind: kind, execType: parfor.ExecLocal, k: 1}
}

// NewLoopNode creates a detached PARFOR or FOR Node for a freshly created loop block
func (t *Tree) NewLoopNode(b program.Block, numIterations int64) *Node {
	n := t.newNode(parfor.ForNode)
	if pf, ok := b.(*program.ParForBlock); ok {
		n.kind = parfor.ParForNode
		n.execType = pf.Config.ExecMode
		n.k = pf.Config.DegreeOfParallelism
		n.Loop = loopParamsFromConfig(pf.Config, numIterations)
	} else {
		n.Loop = &LoopParams{NumIterations: numIterations}
	}
	n.block = b
	return n
}

// Build creates the plan Tree of the parfor loop root, whose block is held by host. Function
// calls are expanded into the callee's body, unless the callee is already being expanded on
// the current call path.
func Build(prog *program.Program, host program.Container, root *program.ParForBlock, vars parfor.Variables) (*Tree, error) {
	found := false
	for _, c := range host.Children() {
		if c == root {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.MissingBlockError{Reason: "root loop is not a child of its host"}
	}
	t := &Tree{prog: prog, host: host}
	b := &builder{tree: t, vars: vars, stack: make(map[program.FunctionKey]bool)}
	rootNode, err := b.buildBlock(root)
	if err != nil {
		return nil, err
	}
	t.root = rootNode[0]
	return t, nil
}

// ExpandCall creates the FUNCCALL Node of a call hop hosted by host, expanding the callee's
// body unless it is one of onStack
func (t *Tree) ExpandCall(hop *program.Hop, host *program.BasicBlock, vars parfor.Variables, onStack ...program.FunctionKey) (*Node, error) {
	b := &builder{tree: t, vars: vars, stack: make(map[program.FunctionKey]bool)}
	for _, key := range onStack {
		b.stack[key] = true
	}
	return b.buildCall(hop, host)
}

type builder struct {
	tree  *Tree
	vars  parfor.Variables
	stack map[program.FunctionKey]bool
}

func loopParamsFromConfig(conf parfor.LoopConfig, numIterations int64) *LoopParams {
	return &LoopParams{
		NumIterations:   numIterations,
		DataPartitioner: conf.DataPartitioner,
		TaskPartitioner: conf.TaskPartitioner,
		TaskSize:        conf.TaskSize,
		ResultMerge:     conf.ResultMerge,
	}
}

func (b *builder) numIterations(pred program.IterablePredicate) int64 {
	n, ok := pred.NumIterations(b.vars)
	if !ok {
		return DefaultNumIterations
	}
	return n
}

func (b *builder) buildBlocks(blocks []program.Block) ([]*Node, error) {
	res := make([]*Node, 0, len(blocks))
	for _, blk := range blocks {
		nodes, err := b.buildBlock(blk)
		if err != nil {
			return nil, err
		}
		res = append(res, nodes...)
	}
	return res, nil
}

// buildBlock creates the Nodes of a single block. BasicBlocks produce one Node per operator,
// every other block produces exactly one Node.
func (b *builder) buildBlock(blk program.Block) ([]*Node, error) {
	var n *Node
	var body []program.Block
	switch tb := blk.(type) {
	case *program.BasicBlock:
		return b.buildOperators(tb)
	case *program.ParForBlock:
		n = b.tree.NewLoopNode(tb, b.numIterations(tb.Predicate))
		body = tb.Body
	case *program.ForBlock:
		n = b.tree.NewLoopNode(tb, b.numIterations(tb.Predicate))
		body = tb.Body
	case *program.WhileBlock:
		n = b.tree.newNode(parfor.WhileNode)
		n.Loop = &LoopParams{NumIterations: DefaultNumIterations}
		n.block = tb
		body = tb.Body
	case *program.IfBlock:
		n = b.tree.newNode(parfor.IfNode)
		n.block = tb
		body = tb.Children()
	default:
		return nil, errors.UnsupportedNodeError{Kind: "block", Operation: "build"}
	}
	children, err := b.buildBlocks(body)
	if err != nil {
		return nil, err
	}
	n.children = children
	return []*Node{n}, nil
}

func (b *builder) buildOperators(bb *program.BasicBlock) ([]*Node, error) {
	ops := bb.Operators()
	res := make([]*Node, 0, len(ops))
	for _, h := range ops {
		if h.Kind == program.OpFunctionCall {
			n, err := b.buildCall(h, bb)
			if err != nil {
				return nil, err
			}
			res = append(res, n)
			continue
		}
		n := b.tree.newNode(parfor.OperatorNode)
		n.execType = h.EffectiveExecType()
		n.Operator = &OperatorParams{Op: h.Opcode(), DataPartitionFormat: parfor.FormatNone}
		n.hop = h
		n.host = bb
		res = append(res, n)
	}
	return res, nil
}

func (b *builder) buildCall(h *program.Hop, host *program.BasicBlock) (*Node, error) {
	fb, ok := b.tree.prog.Function(h.Function)
	if !ok {
		return nil, errors.MissingFunctionError{Key: h.Function.String()}
	}
	n := b.tree.newNode(parfor.FuncCallNode)
	n.Call = &CallParams{Function: h.Function, Recursive: b.tree.prog.IsRecursive(h.Function)}
	n.hop = h
	n.host = host
	if b.stack[h.Function] {
		return n, nil
	}
	b.stack[h.Function] = true
	defer delete(b.stack, h.Function)
	children, err := b.buildBlocks(fb.Body)
	if err != nil {
		return nil, err
	}
	n.children = children
	return n, nil
}
