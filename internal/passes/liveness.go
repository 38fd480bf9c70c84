package passes

import "github.com/microlower/mcbackend/internal/mcir"

// interval is a conservative [start,end] closed range of linear
// instruction indices over which a virtual register must be considered
// live, used by the linear-scan allocator.
type interval struct {
	reg        mcir.MicroReg
	start, end int
}

// livenessResult holds, per linear index, the set of vregs live
// immediately before and after that instruction.
type livenessResult struct {
	before []map[mcir.MicroReg]bool
	after  []map[mcir.MicroReg]bool
}

// computeLiveness runs the standard backward dataflow fixpoint
// (live-out[B] = union of live-in[S] over successors S; live-in[B] =
// uses[B] + (live-out[B] - defs[B])) over the CFG, then replays it
// instruction-by-instruction within each block to get per-instruction
// live-before/live-after sets, adapted to this IR's label/jump-derived
// blocks.
func computeLiveness(s *mcir.Storage, c *cfg, ud []UseDef) *livenessResult {
	n := len(c.blocks)
	liveIn := make([]map[mcir.MicroReg]bool, n)
	liveOut := make([]map[mcir.MicroReg]bool, n)
	for i := range liveIn {
		liveIn[i] = map[mcir.MicroReg]bool{}
		liveOut[i] = map[mcir.MicroReg]bool{}
	}

	blockUses := make([]map[mcir.MicroReg]bool, n)
	blockDefs := make([]map[mcir.MicroReg]bool, n)
	for bi, b := range c.blocks {
		uses := map[mcir.MicroReg]bool{}
		defs := map[mcir.MicroReg]bool{}
		// Walk backward within the block so a use after a def within
		// the same block doesn't get counted as a block-level use.
		for i := b.end - 1; i >= b.start; i-- {
			for _, r := range ud[i].Defs {
				defs[r] = true
				delete(uses, r)
			}
			for _, r := range ud[i].Uses {
				uses[r] = true
			}
		}
		blockUses[bi] = uses
		blockDefs[bi] = defs
	}

	changed := true
	for changed {
		changed = false
		for bi := n - 1; bi >= 0; bi-- {
			out := map[mcir.MicroReg]bool{}
			for _, succ := range c.blocks[bi].succ {
				for r := range liveIn[succ] {
					out[r] = true
				}
			}
			in := map[mcir.MicroReg]bool{}
			for r := range blockUses[bi] {
				in[r] = true
			}
			for r := range out {
				if !blockDefs[bi][r] {
					in[r] = true
				}
			}
			if !setsEqual(in, liveIn[bi]) || !setsEqual(out, liveOut[bi]) {
				changed = true
			}
			liveIn[bi] = in
			liveOut[bi] = out
		}
	}

	res := &livenessResult{
		before: make([]map[mcir.MicroReg]bool, len(c.order)),
		after:  make([]map[mcir.MicroReg]bool, len(c.order)),
	}
	for bi, b := range c.blocks {
		after := copySet(liveOut[bi])
		for i := b.end - 1; i >= b.start; i-- {
			res.after[i] = copySet(after)
			before := copySet(after)
			for _, r := range ud[i].Defs {
				delete(before, r)
			}
			for _, r := range ud[i].Uses {
				before[r] = true
			}
			res.before[i] = before
			after = before
		}
	}
	return res
}

func setsEqual(a, b map[mcir.MicroReg]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func copySet(m map[mcir.MicroReg]bool) map[mcir.MicroReg]bool {
	out := make(map[mcir.MicroReg]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// buildIntervals derives one conservative [min,max] interval per virtual
// register from the per-instruction live-before/live-after sets plus its
// own def/use positions. This collapses potential live-range holes
// (e.g. across an unrelated loop back-edge) into one contiguous range,
// which is sound for linear-scan (it can only over-estimate pressure,
// never under-allocate) per scan-order requirement.
func buildIntervals(order []mcir.Ref, ud []UseDef, lv *livenessResult) []interval {
	spans := map[mcir.MicroReg]*interval{}
	touch := func(r mcir.MicroReg, i int) {
		if !r.Valid() || r.Class() == mcir.RegClassInvalid {
			return
		}
		iv, ok := spans[r]
		if !ok {
			iv = &interval{reg: r, start: i, end: i}
			spans[r] = iv
			return
		}
		if i < iv.start {
			iv.start = i
		}
		if i > iv.end {
			iv.end = i
		}
	}
	for i := range order {
		for r := range lv.before[i] {
			touch(r, i)
		}
		for r := range lv.after[i] {
			touch(r, i)
		}
		for _, r := range ud[i].Uses {
			touch(r, i)
		}
		for _, r := range ud[i].Defs {
			touch(r, i)
		}
	}
	out := make([]interval, 0, len(spans))
	for _, iv := range spans {
		cls := iv.reg.Class()
		if (cls == mcir.RegClassInt || cls == mcir.RegClassFloat) && !iv.reg.IsPhysical() {
			// Only virtual registers are allocation candidates;
			// physical registers pre-colored by ABI lowering
			// (e.g. argument registers) are tracked for
			// interference only, never reassigned.
			out = append(out, *iv)
		}
	}
	sortIntervals(out)
	return out
}

func sortIntervals(xs []interval) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1].start > xs[j].start; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
