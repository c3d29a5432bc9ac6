package program

import (
	"sort"

	"github.com/go-sif/parfor"
)

// AnalyzePartitionFormat determines how matrix is accessed within a parfor body relative to its
// iteration variable. All accesses must share one row-, column- or cell-wise pattern, otherwise
// (or without any access) the result is FormatNone. Function bodies are not entered.
func AnalyzePartitionFormat(pf *ParForBlock, matrix string) parfor.PartitionFormat {
	format := parfor.FormatNone
	consistent := true
	ForEachHop(pf.Body, func(_ *BasicBlock, h *Hop) {
		visited := make(map[*Hop]bool)
		h.walk(visited, func(in *Hop) {
			if in.Kind != OpIndexing || !in.Matrix().RefersTo(matrix) {
				return
			}
			access := in.KeyedOn(pf.Predicate.Var)
			if access == parfor.FormatNone || (format != parfor.FormatNone && access != format) {
				consistent = false
			}
			format = access
		})
	})
	if !consistent {
		return parfor.FormatNone
	}
	return format
}

// WrittenVars returns all variables written within blocks, including left-indexing targets and
// function call outputs. Function bodies are not entered.
func WrittenVars(blocks []Block) map[string]bool {
	res := make(map[string]bool)
	ForEachHop(blocks, func(_ *BasicBlock, h *Hop) {
		if h.Output != "" {
			res[h.Output] = true
		}
		for _, out := range h.Outputs {
			res[out] = true
		}
	})
	return res
}

// ReadOnlyParentVars returns the matrices bound outside of a parfor loop which are read but
// never written within its body, sorted by name
func ReadOnlyParentVars(pf *ParForBlock, vars parfor.Variables) []string {
	written := WrittenVars(pf.Body)
	read := make(map[string]bool)
	ForEachHop(pf.Body, func(_ *BasicBlock, h *Hop) {
		visited := make(map[*Hop]bool)
		h.walk(visited, func(in *Hop) {
			if in.Kind == OpData {
				read[in.Name] = true
			}
		})
	})
	res := make([]string, 0, len(read))
	for name := range read {
		if written[name] || name == pf.Predicate.Var {
			continue
		}
		if _, ok := vars.Matrix(name); ok {
			res = append(res, name)
		}
	}
	sort.Strings(res)
	return res
}
