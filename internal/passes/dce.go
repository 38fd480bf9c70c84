package passes

import (
	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/mcir"
)

// DCE implements dead-code elimination: an instruction
// that only defines a register whose next definition, with no
// intervening use, occurs before the next control-flow barrier is
// removed. Stack-pointer, instruction-pointer, and call-result
// definitions are never candidates. An unused def past its last use is
// dropped during the same backward walk liveness itself uses; here it
// runs as its own pass over Context.Order rather than folded into
// allocation, since this IR's regalloc already ran by the time the
// peephole loop starts.
func DCE(ctx *Context) (bool, error) {
	s := ctx.storage()
	cc := abi.Get(ctx.CallConvKind)
	order := ctx.Order
	changed := false

	removable := make([]bool, len(order))
	for i, ref := range order {
		in := s.Instr(ref)
		if in.Opcode.IsControlFlowBarrier() || in.Opcode.IsCall() {
			continue
		}
		ud := Compute(in.Opcode, s.Operands(in))
		if len(ud.Defs) != 1 {
			continue
		}
		d := ud.Defs[0]
		if d == cc.StackPointer || d.Class() == mcir.RegClassIP {
			continue
		}

		for j := i + 1; j < len(order); j++ {
			in2 := s.Instr(order[j])
			ud2 := Compute(in2.Opcode, s.Operands(in2))
			usedHere := false
			for _, u := range ud2.Uses {
				if u == d {
					usedHere = true
					break
				}
			}
			if usedHere {
				break
			}
			redefinedHere := false
			for _, d2 := range ud2.Defs {
				if d2 == d {
					redefinedHere = true
					break
				}
			}
			if redefinedHere {
				removable[i] = true
				break
			}
			if in2.Opcode.IsControlFlowBarrier() {
				break
			}
		}
	}

	newOrder := order[:0:0]
	for i, ref := range order {
		if removable[i] {
			s.Erase(ref)
			changed = true
			continue
		}
		newOrder = append(newOrder, ref)
	}
	ctx.Order = newOrder
	return changed, nil
}
