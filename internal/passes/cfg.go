package passes

import "github.com/microlower/mcbackend/internal/mcir"

// block is a maximal run of instructions with single-entry (a label, or
// the function start) and the successors resolvable from its last
// instruction. Used only internally by register allocation's liveness
// computation; the peephole passes (copy-prop, branch-fold, ...) track
// their own, narrower, "until next barrier" notion of a block directly
// over the linear instruction list.
type block struct {
	start, end int // [start, end) indices into the linearized order.
	succ       []int
}

type cfg struct {
	order  []mcir.Ref
	pos    map[mcir.Ref]int
	blocks []block
	// blockOf maps a linear index to its containing block index.
	blockOf    []int
	labelBlock map[mcir.Ref]int
}

func buildCFG(s *mcir.Storage, order []mcir.Ref) *cfg {
	c := &cfg{order: order, pos: make(map[mcir.Ref]int, len(order)), labelBlock: map[mcir.Ref]int{}}
	for i, ref := range order {
		c.pos[ref] = i
	}

	// Determine block-start indices.
	starts := map[int]bool{0: true}
	for i, ref := range order {
		in := s.Instr(ref)
		if in.Opcode == mcir.OpLabel {
			starts[i] = true
		}
		switch in.Opcode {
		case mcir.OpJumpCond, mcir.OpJumpCondImm, mcir.OpJumpReg, mcir.OpJumpTable, mcir.OpRet:
			if i+1 < len(order) {
				starts[i+1] = true
			}
		}
	}

	var startList []int
	for i := range starts {
		startList = append(startList, i)
	}
	sortInts(startList)

	c.blockOf = make([]int, len(order))
	for bi, s0 := range startList {
		end := len(order)
		if bi+1 < len(startList) {
			end = startList[bi+1]
		}
		blkIdx := len(c.blocks)
		c.blocks = append(c.blocks, block{start: s0, end: end})
		for i := s0; i < end; i++ {
			c.blockOf[i] = blkIdx
		}
		if s0 < len(order) {
			if in := s.Instr(order[s0]); in.Opcode == mcir.OpLabel {
				c.labelBlock[order[s0]] = blkIdx
			}
		}
	}

	for bi := range c.blocks {
		c.blocks[bi].succ = c.successorsOf(s, bi)
	}
	return c
}

func (c *cfg) successorsOf(s *mcir.Storage, bi int) []int {
	b := c.blocks[bi]
	if b.end == b.start {
		return nil
	}
	lastRef := c.order[b.end-1]
	in := s.Instr(lastRef)
	ops := s.Operands(in)
	switch in.Opcode {
	case mcir.OpJumpCond:
		target := ops[len(ops)-1].Label
		succs := []int{}
		if b.end < len(c.order) {
			succs = append(succs, bi+1)
		}
		if tb, ok := c.labelBlock[target]; ok {
			succs = append(succs, tb)
		}
		return succs
	case mcir.OpJumpReg, mcir.OpJumpTable, mcir.OpRet:
		// Indirect/terminal: conservatively no statically-known
		// successor. This is a deliberate simplification.
		return nil
	default:
		if b.end < len(c.order) {
			return []int{bi + 1}
		}
		return nil
	}
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
