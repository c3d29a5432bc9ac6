package optimizer

import (
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/errors"
	"github.com/go-sif/parfor/logging"
	"github.com/go-sif/parfor/plan"
	"github.com/go-sif/parfor/program"
)

// rewriteRemoveRecursiveParFor downgrades every parfor loop reachable only through a call to
// a recursive function, since recursive invocations would multiply its parallelism. If the
// root loop itself is reached that way, the recursive call edge leading back to it is
// redirected to a private copy of the function first, so the root loop stays parallel while
// its copy is downgraded. Functions whose loops are also reached outside of recursion are
// copied the same way for their calls within recursion.
func (o *Optimizer) rewriteRemoveRecursiveParFor(s scope) (string, error) {
	rec, plain := classifyParFor(s.root)
	if len(rec) == 0 {
		return "0", nil
	}
	if rec[s.loop] {
		if err := o.unfoldRecursiveCalls(s); err != nil {
			return "", err
		}
		rec, plain = classifyParFor(s.root)
	}
	shared := make(map[*program.ParForBlock]bool)
	for pf := range rec {
		if plain[pf] {
			shared[pf] = true
		}
	}
	if len(shared) > 0 {
		if err := o.separateSharedCalls(s, s.root, false, nil, shared); err != nil {
			return "", err
		}
		rec, plain = classifyParFor(s.root)
	}
	targets := make([]*plan.Node, 0)
	s.root.Walk(func(n *plan.Node) bool {
		if pf, ok := n.ParFor(); ok && rec[pf] && !plain[pf] {
			targets = append(targets, n)
		}
		return true
	})
	count, err := o.downgrade(s, targets, "recursive")
	if err != nil {
		return "", err
	}
	return intResult(count), nil
}

// classifyParFor splits the parfor loops within the subtree of root into those reached
// through a call to a recursive function and those reached outside of recursion. A loop may
// be in both.
func classifyParFor(root *plan.Node) (rec, plain map[*program.ParForBlock]bool) {
	rec = make(map[*program.ParForBlock]bool)
	plain = make(map[*program.ParForBlock]bool)
	findRecursiveParFor(root, false, rec, plain)
	return rec, plain
}

func findRecursiveParFor(n *plan.Node, inRecursion bool, rec, plain map[*program.ParForBlock]bool) {
	if pf, ok := n.ParFor(); ok {
		if inRecursion {
			rec[pf] = true
		} else {
			plain[pf] = true
		}
	}
	for _, c := range n.Children() {
		findRecursiveParFor(c, inRecursion || (c.Kind() == parfor.FuncCallNode && c.Call.Recursive), rec, plain)
	}
}

// separateSharedCalls redirects every call within recursion to a non-recursive function
// holding one of shared to a copy of that function. Calls are visited top-down, so a call
// is only redirected once its host belongs to recursion alone.
func (o *Optimizer) separateSharedCalls(s scope, n *plan.Node, inRecursion bool, stack []program.FunctionKey, shared map[*program.ParForBlock]bool) error {
	children := append([]*plan.Node(nil), n.Children()...)
	for _, c := range children {
		if c.Kind() != parfor.FuncCallNode {
			if err := o.separateSharedCalls(s, c, inRecursion, stack, shared); err != nil {
				return err
			}
			continue
		}
		if inRecursion && !c.Call.Recursive && containsAnyBlock(c, shared) {
			var err error
			if c, err = o.redirectCall(s, n, c, stack...); err != nil {
				return err
			}
		}
		next := append(stack[:len(stack):len(stack)], c.Call.Function)
		if err := o.separateSharedCalls(s, c, inRecursion || c.Call.Recursive, next, shared); err != nil {
			return err
		}
	}
	return nil
}

func containsAnyBlock(n *plan.Node, blocks map[*program.ParForBlock]bool) bool {
	for _, pf := range n.ParForBlocks() {
		if blocks[pf] {
			return true
		}
	}
	return false
}

// unfoldRecursiveCalls redirects every recursive call which leads back to the root loop to a
// copy of its function
func (o *Optimizer) unfoldRecursiveCalls(s scope) error {
	sites := make([]*plan.Node, 0)
	s.root.Walk(func(n *plan.Node) bool {
		if n.Kind() != parfor.FuncCallNode || !n.Call.Recursive {
			return true
		}
		if n.ContainsBlock(s.loop) {
			sites = append(sites, n)
		}
		return false
	})
	for _, n := range sites {
		parent, ok := s.tree.Parent(n)
		if !ok {
			return errors.MissingBlockError{NodeID: n.ID(), Reason: "recursive call has no parent"}
		}
		if _, err := o.redirectCall(s, parent, n, n.Call.Function); err != nil {
			return err
		}
	}
	return nil
}

// redirectCall points the call hop of n, a child of parent, to the unfolded copy of its
// function, creating the copy if needed, and replaces n by the expansion of the copy. Calls
// to any of onStack are not expanded.
func (o *Optimizer) redirectCall(s scope, parent, n *plan.Node, onStack ...program.FunctionKey) (*plan.Node, error) {
	key := n.Call.Function
	newKey := program.FunctionKey{Namespace: key.Namespace, Name: FunctionUnfoldPrefix + key.Name}
	if _, exists := s.tree.Program().Function(newKey); !exists {
		if err := o.unfoldFunction(s, key, newKey); err != nil {
			return nil, err
		}
	}
	// several nodes may share the hop, which is then rewired once
	if n.Hop().Function != newKey {
		n.Hop().Function = newKey
		if err := s.rec.Recompile(n.Host(), s.vars); err != nil {
			return nil, err
		}
	}
	nNew, err := s.tree.ExpandCall(n.Hop(), n.Host(), s.vars, onStack...)
	if err != nil {
		return nil, err
	}
	if !parent.ReplaceChild(n, nNew) {
		return nil, errors.MissingBlockError{NodeID: n.ID(), Reason: "call is not a child of its parent"}
	}
	logging.Debugf("RULEBASED OPT: unfolded function %s into %s", key, newKey)
	return nNew, nil
}

// unfoldFunction adds a copy of the function key under newKey, whose recursive calls refer
// to the copy itself
func (o *Optimizer) unfoldFunction(s scope, key, newKey program.FunctionKey) error {
	prog := s.tree.Program()
	fb, ok := prog.Function(key)
	if !ok {
		return errors.MissingFunctionError{Key: key.String()}
	}
	clone := program.CopyFunction(fb, newKey)
	hosts := make([]*program.BasicBlock, 0)
	seen := make(map[*program.BasicBlock]bool)
	program.ForEachHop(clone.Body, func(host *program.BasicBlock, h *program.Hop) {
		if h.Kind != program.OpFunctionCall || h.Function != key {
			return
		}
		h.Function = newKey
		if !seen[host] {
			seen[host] = true
			hosts = append(hosts, host)
		}
	})
	for _, host := range hosts {
		if err := s.rec.Recompile(host, s.vars); err != nil {
			return err
		}
	}
	prog.AddFunction(clone)
	return nil
}

// rewriteRemoveUnnecessaryParFor downgrades every parfor loop, the root included, whose
// degree of parallelism is 1
func (o *Optimizer) rewriteRemoveUnnecessaryParFor(s scope) (int, error) {
	targets := make([]*plan.Node, 0)
	s.root.Walk(func(n *plan.Node) bool {
		if n.Kind() == parfor.ParForNode && n.K() == 1 {
			targets = append(targets, n)
		}
		return true
	})
	return o.downgrade(s, targets, "unnecessary")
}

type downgradeTarget struct {
	node      *plan.Node
	block     *program.ParForBlock
	container program.Container
}

// downgrade turns the parfor loops of targets into sequential loops, both in the plan tree
// and in the program. Every container is resolved before the first loop is replaced, so a
// missing block leaves everything untouched. Several nodes may share a loop, which is then
// replaced once. It returns the number of replaced loops.
func (o *Optimizer) downgrade(s scope, targets []*plan.Node, reason string) (int, error) {
	prepared := make([]downgradeTarget, 0, len(targets))
	resolved := make(map[*program.ParForBlock]bool)
	for _, n := range targets {
		pf, ok := n.ParFor()
		if !ok {
			return 0, errors.UnsupportedNodeError{NodeID: n.ID(), Kind: string(n.Kind()), Operation: "downgrade"}
		}
		if resolved[pf] {
			prepared = append(prepared, downgradeTarget{node: n, block: pf})
			continue
		}
		c, err := s.tree.Container(n)
		if err != nil {
			return 0, err
		}
		if !containsBlock(c.Children(), pf) {
			return 0, errors.MissingBlockError{NodeID: n.ID(), Reason: "parfor loop is not a child of its container"}
		}
		resolved[pf] = true
		prepared = append(prepared, downgradeTarget{node: n, block: pf, container: c})
	}

	replacements := make(map[*program.ParForBlock]*program.ForBlock)
	for _, t := range prepared {
		fb, ok := replacements[t.block]
		if !ok {
			fb = program.NewForFromParFor(t.block)
			replacements[t.block] = fb
			t.container.ReplaceChild(t.block, fb)
		}
		t.node.ConvertToFor(fb)
	}
	count := len(replacements)
	if count > 0 {
		o.opts.Metrics.LoopsDowngraded(reason, count)
		logging.Debugf("RULEBASED OPT: downgraded %d %s parfor loop(s)", count, reason)
	}
	return count, nil
}

func containsBlock(blocks []program.Block, b program.Block) bool {
	for _, c := range blocks {
		if c == b {
			return true
		}
	}
	return false
}
