package plan

import (
	"fmt"
	"io"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/go-sif/parfor"
	"github.com/go-sif/parfor/internal/util"
	"github.com/xlab/treeprint"
)

// Label returns a one-line description of n and its decisions
func (n *Node) Label() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d) %s", n.kind, n.id, n.execType)
	switch n.kind {
	case parfor.ParForNode:
		fmt.Fprintf(&sb, " k=%d N=%d", n.k, n.NumIterations())
		if n.Loop != nil {
			fmt.Fprintf(&sb, " dp=%s tp=%s rm=%s", n.Loop.DataPartitioner, n.Loop.TaskPartitioner, n.Loop.ResultMerge)
			if n.Loop.TaskSize > 0 {
				fmt.Fprintf(&sb, " ts=%d", n.Loop.TaskSize)
			}
		}
	case parfor.ForNode, parfor.WhileNode:
		fmt.Fprintf(&sb, " N=%d", n.NumIterations())
	case parfor.FuncCallNode:
		fmt.Fprintf(&sb, " %s", n.Call.Function)
		if n.Call.Recursive {
			sb.WriteString(" recursive")
		}
	case parfor.OperatorNode:
		fmt.Fprintf(&sb, " %s mem=%s", n.Operator.Op, util.FormatBytes(n.MemEstimate()))
		if f := n.Operator.DataPartitionFormat; f != "" && f != parfor.FormatNone {
			fmt.Fprintf(&sb, " dpf=%s", f)
		}
		if n.Operator.TaskSize > 0 {
			fmt.Fprintf(&sb, " ts=%d", n.Operator.TaskSize)
		}
	}
	return sb.String()
}

// Explain renders this Tree, one Node per line
func (t *Tree) Explain() string {
	return asTree(t.root, nil).String()
}

func asTree(n *Node, parent treeprint.Tree) treeprint.Tree {
	var branch treeprint.Tree
	if parent == nil {
		branch = treeprint.NewWithRoot(n.Label())
	} else if n.IsLeaf() {
		branch = parent.AddNode(n.Label())
	} else {
		branch = parent.AddBranch(n.Label())
	}
	for _, c := range n.children {
		asTree(c, branch)
	}
	return branch
}

// Fingerprint hashes every decision of this Tree, together with the configuration committed
// into its parfor loops. Two passes produced the same plan iff their fingerprints match.
func (t *Tree) Fingerprint() uint64 {
	h := xxhash.New()
	t.root.Walk(func(n *Node) bool {
		writeNode(h, n)
		return true
	})
	return h.Sum64()
}

func writeNode(w io.Writer, n *Node) {
	fmt.Fprintf(w, "%s|%s|%d|%d|", n.kind, n.execType, n.k, len(n.children))
	if n.Loop != nil {
		fmt.Fprintf(w, "%+v|", *n.Loop)
	}
	if n.Operator != nil {
		fmt.Fprintf(w, "%+v|%s|", *n.Operator, n.hop.EffectiveExecType())
	}
	if n.Call != nil {
		fmt.Fprintf(w, "%s|", n.Call.Function)
	}
	if pf, ok := n.ParFor(); ok {
		fmt.Fprintf(w, "%+v|", pf.Config)
	}
	fmt.Fprintf(w, "%T;", n.block)
}
