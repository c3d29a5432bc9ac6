package program

// copier deep-copies blocks, preserving sharing between hops of the same DAG
type copier struct {
	hops map[*Hop]*Hop
	ids  map[int64]int64
}

// CopyFunction creates a deep copy of a function under a new key. Every Hop of the copy receives
// a fresh id, every parfor loop keeps its configuration, and calls inside the copy still refer
// to their original callees.
func CopyFunction(fb *FunctionBlock, key FunctionKey) *FunctionBlock {
	c := &copier{hops: make(map[*Hop]*Hop), ids: make(map[int64]int64)}
	return &FunctionBlock{
		Key:     key,
		source:  c.copySource(fb.source),
		Inputs:  append([]string(nil), fb.Inputs...),
		Outputs: append([]string(nil), fb.Outputs...),
		Body:    c.copyBlocks(fb.Body),
	}
}

func (c *copier) copyBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	res := make([]Block, len(blocks))
	for i, b := range blocks {
		res[i] = c.copyBlock(b)
	}
	return res
}

func (c *copier) copyBlock(b Block) Block {
	switch tb := b.(type) {
	case *BasicBlock:
		res := &BasicBlock{source: c.copySource(tb.source)}
		res.Instructions = make([]Instruction, len(tb.Instructions))
		for i, inst := range tb.Instructions {
			res.Instructions[i] = inst
			if id, ok := c.ids[inst.HopID]; ok {
				res.Instructions[i].HopID = id
			}
		}
		return res
	case *IfBlock:
		return &IfBlock{source: c.copySource(tb.source), Then: c.copyBlocks(tb.Then), Else: c.copyBlocks(tb.Else)}
	case *WhileBlock:
		return &WhileBlock{source: c.copySource(tb.source), Body: c.copyBlocks(tb.Body)}
	case *ForBlock:
		return &ForBlock{Loop: c.copyLoop(&tb.Loop)}
	case *ParForBlock:
		return &ParForBlock{
			Loop:       c.copyLoop(&tb.Loop),
			Config:     tb.Config,
			ResultVars: append([]string(nil), tb.ResultVars...),
		}
	default:
		return b
	}
}

func (c *copier) copyLoop(l *Loop) Loop {
	pred := l.Predicate
	if l.Predicate.Limit != nil {
		limit := *l.Predicate.Limit
		pred.Limit = &limit
	}
	return Loop{source: c.copySource(l.source), Predicate: pred, Body: c.copyBlocks(l.Body)}
}

func (c *copier) copySource(sb *StatementBlock) *StatementBlock {
	if sb == nil {
		return nil
	}
	res := &StatementBlock{BeginLine: sb.BeginLine, EndLine: sb.EndLine}
	if sb.Hops != nil {
		res.Hops = make([]*Hop, len(sb.Hops))
		for i, h := range sb.Hops {
			res.Hops[i] = c.copyHop(h)
		}
	}
	return res
}

func (c *copier) copyHop(h *Hop) *Hop {
	if h == nil {
		return nil
	}
	if copied, ok := c.hops[h]; ok {
		return copied
	}
	res := *h
	res.ID = nextHopID()
	c.ids[h.ID] = res.ID
	res.Outputs = append([]string(nil), h.Outputs...)
	c.hops[h] = &res
	if h.Inputs != nil {
		res.Inputs = make([]*Hop, len(h.Inputs))
		for i, in := range h.Inputs {
			res.Inputs[i] = c.copyHop(in)
		}
	}
	return &res
}
