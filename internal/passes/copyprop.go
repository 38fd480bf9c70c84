package passes

import "github.com/microlower/mcbackend/internal/mcir"

// CopyProp implements copy propagation: after a 64-bit,
// same-class `mov r2, r1` (an OpLoadRegReg), later pure uses of r2 are
// rewritten to r1 until r2 is redefined, a call occurs, a label is
// reached, or any other control-flow barrier — following alias chains up
// to 32 hops. The rewrite walks a move chain to find the ultimate
// source before propagating it, directly over the IR instead of at
// allocation time.
func CopyProp(ctx *Context) (bool, error) {
	s := ctx.storage()
	order := ctx.Order
	changed := false

	alias := map[mcir.MicroReg]mcir.MicroReg{}
	resolve := func(r mcir.MicroReg) mcir.MicroReg {
		cur := r
		for hop := 0; hop < 32; hop++ {
			next, ok := alias[cur]
			if !ok {
				return cur
			}
			cur = next
		}
		return cur
	}
	clear := func() { alias = map[mcir.MicroReg]mcir.MicroReg{} }

	for _, ref := range order {
		in := s.Instr(ref)
		if in.Opcode == mcir.OpLabel || in.Opcode.IsCall() {
			clear()
			continue
		}

		ud := Compute(in.Opcode, s.Operands(in))

		// Rewrite uses (other than the copy's own source operand,
		// handled by the Kind==Reg loop below) through the alias map
		// before this instruction's defs invalidate any of it.
		for i := 0; i < int(in.NumOps); i++ {
			op := s.Operand(in.Operands, i)
			switch op.Kind {
			case mcir.OperandKindReg:
				if !isOperandAPureUse(in.Opcode, i) {
					continue
				}
				if r := resolve(op.Reg); r != op.Reg {
					op.Reg = r
					changed = true
				}
			case mcir.OperandKindAmc:
				// Address computations are always reads, regardless
				// of which side of the instruction they sit on.
				if r := resolve(op.Amc.Base); r != op.Amc.Base {
					op.Amc.Base = r
					changed = true
				}
				if op.Amc.HasIndex {
					if r := resolve(op.Amc.Index); r != op.Amc.Index {
						op.Amc.Index = r
						changed = true
					}
				}
			}
		}

		for _, d := range ud.Defs {
			for k, v := range alias {
				if k == d || v == d {
					delete(alias, k)
				}
			}
		}

		if in.Opcode == mcir.OpLoadRegReg {
			ops := s.Operands(in)
			if ops[2].Bits == mcir.OpBits64 && ops[0].Reg.Class() == ops[1].Reg.Class() {
				alias[ops[0].Reg] = resolve(ops[1].Reg)
			}
		}

		if in.Opcode.IsControlFlowBarrier() {
			clear()
		}
	}
	return changed, nil
}

// isOperandAPureUse reports whether operand index i of opcode op is
// only ever read. A read-modify-write position (an ALU op's
// destination, a cmov's destination) is deliberately excluded: aliasing
// it to the copy's source would redirect the instruction's definition,
// not just its read.
func isOperandAPureUse(op mcir.Opcode, i int) bool {
	switch op {
	case mcir.OpLoadRegReg, mcir.OpLoadRegRegSext, mcir.OpLoadRegRegZext:
		return i == 1
	case mcir.OpLoadMemReg, mcir.OpLoadAmcMemReg:
		return i == 1
	case mcir.OpPush, mcir.OpCmpRegZero, mcir.OpCmpRegReg, mcir.OpCmpRegImm:
		return true
	case mcir.OpCmpMemReg:
		return i == 1
	case mcir.OpBinary:
		return i == 3
	case mcir.OpTernary:
		return i == 3 || i == 4
	case mcir.OpLoadCondRegReg:
		return i == 2
	case mcir.OpCallIndirect, mcir.OpJumpReg, mcir.OpJumpTable:
		return i == 0
	default:
		return false
	}
}
