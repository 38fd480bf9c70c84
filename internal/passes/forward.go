package passes

import "github.com/microlower/mcbackend/internal/mcir"

// LoadStoreForward implements load/store forwarding: a
// store immediately followed by a load of the exact same address and
// width has the load rewritten to read directly from the stored register
// or immediate, skipping the round trip through memory. The store itself
// stays — the memory location remains observable (a spill slot reloaded
// again later, an address the caller also reads) and dropping it is
// DCE's decision to make, not this pass's. Only adjacent pairs
// qualify — anything interposing (including another instruction that
// merely reads the same address) invalidates the rewrite, since this
// pass makes no attempt at alias analysis beyond literal adjacency.
func LoadStoreForward(ctx *Context) (bool, error) {
	s := ctx.storage()
	order := ctx.Order
	changed := false

	newOrder := make([]mcir.Ref, 0, len(order))
	skipNext := false
	for i := 0; i < len(order); i++ {
		if skipNext {
			skipNext = false
			continue
		}
		ref := order[i]
		if i+1 >= len(order) {
			newOrder = append(newOrder, ref)
			continue
		}
		in1 := s.Instr(ref)
		in2 := s.Instr(order[i+1])
		ops1 := s.Operands(in1)
		ops2 := s.Operands(in2)

		switch {
		case in1.Opcode == mcir.OpLoadMemReg && in2.Opcode == mcir.OpLoadRegMem &&
			sameAddr(ops1[0].Amc, ops2[1].Amc) && ops1[2].Bits == ops2[2].Bits:
			merged := s.AppendInstr(mcir.OpLoadRegReg, 3)
			mergedIn := s.Instr(merged)
			*s.Operand(mergedIn.Operands, 0) = ops2[0]
			*s.Operand(mergedIn.Operands, 1) = ops1[1]
			*s.Operand(mergedIn.Operands, 2) = ops1[2]
			s.Erase(order[i+1])
			newOrder = append(newOrder, ref, merged)
			skipNext = true
			changed = true

		case in1.Opcode == mcir.OpLoadMemImm && in2.Opcode == mcir.OpLoadRegMem &&
			sameAddr(ops1[0].Amc, ops2[1].Amc) && ops1[2].Bits == ops2[2].Bits:
			merged := s.AppendInstr(mcir.OpLoadRegImm, 3)
			mergedIn := s.Instr(merged)
			*s.Operand(mergedIn.Operands, 0) = ops2[0]
			*s.Operand(mergedIn.Operands, 1) = ops1[1]
			*s.Operand(mergedIn.Operands, 2) = ops1[2]
			s.Erase(order[i+1])
			newOrder = append(newOrder, ref, merged)
			skipNext = true
			changed = true

		default:
			newOrder = append(newOrder, ref)
		}
	}
	ctx.Order = newOrder
	return changed, nil
}

func sameAddr(a, b mcir.Amc) bool {
	if a.Base != b.Base || a.Disp != b.Disp || a.HasIndex != b.HasIndex {
		return false
	}
	if a.HasIndex && (a.Index != b.Index || a.Scale != b.Scale) {
		return false
	}
	return true
}
