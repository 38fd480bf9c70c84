package passes

import "github.com/microlower/mcbackend/internal/mcir"

// CFGSimplify implements three CFG-simplify rewrites:
// (i) a JumpCond whose target is the very next non-debug instruction is
// a no-op and is deleted; (ii) anything between an unconditional
// jump/Ret and the next Label is unreachable and is removed; (iii) a
// label no longer referenced by any jump is removed.
func CFGSimplify(ctx *Context) (bool, error) {
	s := ctx.storage()
	order := ctx.Order

	order, c1 := dropFallthroughJumps(s, order)
	order, c2 := dropUnreachableAfterTerminator(s, order)
	order, c3 := dropUnreferencedLabels(s, order)

	ctx.Order = order
	return c1 || c2 || c3, nil
}

func nextNonDebug(s *mcir.Storage, order []mcir.Ref, i int) (mcir.Ref, bool) {
	for j := i + 1; j < len(order); j++ {
		if s.Instr(order[j]).Opcode != mcir.OpDebug {
			return order[j], true
		}
	}
	return 0, false
}

func dropFallthroughJumps(s *mcir.Storage, order []mcir.Ref) ([]mcir.Ref, bool) {
	changed := false
	newOrder := make([]mcir.Ref, 0, len(order))
	for i, ref := range order {
		in := s.Instr(ref)
		if in.Opcode == mcir.OpJumpCond {
			ops := s.Operands(in)
			target := ops[len(ops)-1].Label
			if next, ok := nextNonDebug(s, order, i); ok && next == target {
				s.Erase(ref)
				changed = true
				continue
			}
		}
		newOrder = append(newOrder, ref)
	}
	return newOrder, changed
}

func isUnconditionalTerminator(in *mcir.Instr, ops []mcir.Operand) bool {
	switch in.Opcode {
	case mcir.OpRet, mcir.OpJumpReg, mcir.OpJumpTable:
		return true
	case mcir.OpJumpCond:
		return ops[0].Cond.IsAlways()
	default:
		return false
	}
}

func dropUnreachableAfterTerminator(s *mcir.Storage, order []mcir.Ref) ([]mcir.Ref, bool) {
	changed := false
	newOrder := make([]mcir.Ref, 0, len(order))
	dead := false
	for _, ref := range order {
		in := s.Instr(ref)
		if in.Opcode == mcir.OpLabel {
			dead = false
		}
		if dead {
			s.Erase(ref)
			changed = true
			continue
		}
		newOrder = append(newOrder, ref)
		if isUnconditionalTerminator(in, s.Operands(in)) {
			dead = true
		}
	}
	return newOrder, changed
}

func dropUnreferencedLabels(s *mcir.Storage, order []mcir.Ref) ([]mcir.Ref, bool) {
	referenced := map[mcir.Ref]bool{}
	for _, ref := range order {
		in := s.Instr(ref)
		if in.Opcode == mcir.OpJumpCond {
			ops := s.Operands(in)
			referenced[ops[len(ops)-1].Label] = true
		}
	}
	changed := false
	newOrder := make([]mcir.Ref, 0, len(order))
	for _, ref := range order {
		in := s.Instr(ref)
		if in.Opcode == mcir.OpLabel && !referenced[ref] {
			s.Erase(ref)
			changed = true
			continue
		}
		newOrder = append(newOrder, ref)
	}
	return newOrder, changed
}
