package passes

import "github.com/microlower/mcbackend/internal/mcir"

// knownConst tracks, within one basic block, the last compare this block
// proved both operands constant for, so the following JumpCond can be
// evaluated at compile time.
type knownConst struct {
	have bool
	a, b int64 // a acted on as the CmpRegReg/CmpRegImm left/right; CmpRegZero sets b=0.
	bits mcir.OpBits
}

// BranchFold implements branch folding: within a basic
// block, track registers proven to hold a known compile-time constant
// (via OpLoadRegImm); when the following compare's operands are both
// known, evaluate it; when the JumpCond right after that compare tests
// the just-recorded result, rewrite it to unconditional (CondAlways) if
// always taken, or delete it if never taken. Never folds across a label,
// a call, or a compare against an unknown register: a "known register
// value within a block" constant-propagation model.
func BranchFold(ctx *Context) (bool, error) {
	s := ctx.storage()
	order := ctx.Order
	changed := false

	constReg := map[mcir.MicroReg]uint64{}
	var pending knownConst

	resetBlock := func() {
		constReg = map[mcir.MicroReg]uint64{}
		pending = knownConst{}
	}

	newOrder := make([]mcir.Ref, 0, len(order))
	for _, ref := range order {
		in := s.Instr(ref)
		ops := s.Operands(in)

		switch in.Opcode {
		case mcir.OpLabel:
			resetBlock()
			newOrder = append(newOrder, ref)
			continue
		case mcir.OpLoadRegImm:
			constReg[ops[0].Reg] = ops[1].U64
			pending = knownConst{}
			newOrder = append(newOrder, ref)
			continue
		case mcir.OpCmpRegImm:
			if v, ok := constReg[ops[0].Reg]; ok {
				pending = knownConst{have: true, a: signExtend(v, ops[2].Bits), b: int64(ops[1].U64), bits: ops[2].Bits}
			} else {
				pending = knownConst{}
			}
			newOrder = append(newOrder, ref)
			continue
		case mcir.OpCmpRegReg:
			va, oka := constReg[ops[0].Reg]
			vb, okb := constReg[ops[1].Reg]
			if oka && okb {
				pending = knownConst{have: true, a: signExtend(va, ops[2].Bits), b: signExtend(vb, ops[2].Bits), bits: ops[2].Bits}
			} else {
				pending = knownConst{}
			}
			newOrder = append(newOrder, ref)
			continue
		case mcir.OpCmpRegZero:
			if v, ok := constReg[ops[0].Reg]; ok {
				pending = knownConst{have: true, a: signExtend(v, ops[1].Bits), b: 0, bits: ops[1].Bits}
			} else {
				pending = knownConst{}
			}
			newOrder = append(newOrder, ref)
			continue
		case mcir.OpJumpCond:
			cond := ops[0].Cond
			deleted := false
			if pending.have && cond != mcir.CondOverflow && cond != mcir.CondNoOverflow {
				taken := evalCondition(cond, pending.a, pending.b)
				if taken {
					*s.Operand(in.Operands, 0) = mcir.OperandCond(mcir.CondAlways)
				} else {
					s.Erase(ref)
					deleted = true
				}
				changed = true
			}
			pending = knownConst{}
			resetBlock()
			if !deleted {
				newOrder = append(newOrder, ref)
			}
			continue
		}

		if in.Opcode.IsControlFlowBarrier() {
			resetBlock()
			newOrder = append(newOrder, ref)
			continue
		}

		// Any other def invalidates that register's known-constant
		// status and the pending compare, conservatively.
		ud := Compute(in.Opcode, ops)
		for _, d := range ud.Defs {
			delete(constReg, d)
		}
		if len(ud.Defs) > 0 {
			pending = knownConst{}
		}
		newOrder = append(newOrder, ref)
	}
	ctx.Order = newOrder
	return changed, nil
}

func signExtend(v uint64, bits mcir.OpBits) int64 {
	switch bits {
	case mcir.OpBits8:
		return int64(int8(v))
	case mcir.OpBits16:
		return int64(int16(v))
	case mcir.OpBits32:
		return int64(int32(v))
	default:
		return int64(v)
	}
}

// evalCondition decides, given two known operand values, whether cond
// holds. Signed conditions compare a, b as signed; unsigned conditions
// reinterpret them as unsigned of the same width.
func evalCondition(cond mcir.Condition, a, b int64) bool {
	switch cond {
	case mcir.CondEqual:
		return a == b
	case mcir.CondNotEqual:
		return a != b
	case mcir.CondSignedLess:
		return a < b
	case mcir.CondSignedLessEqual:
		return a <= b
	case mcir.CondSignedGreater:
		return a > b
	case mcir.CondSignedGreaterEqual:
		return a >= b
	case mcir.CondUnsignedLess:
		return uint64(a) < uint64(b)
	case mcir.CondUnsignedLessEqual:
		return uint64(a) <= uint64(b)
	case mcir.CondUnsignedGreater:
		return uint64(a) > uint64(b)
	case mcir.CondUnsignedGreaterEqual:
		return uint64(a) >= uint64(b)
	case mcir.CondSign:
		return a < 0
	case mcir.CondNoSign:
		return a >= 0
	default:
		// CondOverflow/CondNoOverflow depend on the arithmetic that set
		// the flags, not just the compare operands; branch folding
		// conservatively never claims to know these.
		return false
	}
}
