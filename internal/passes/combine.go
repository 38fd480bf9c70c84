package passes

import "github.com/microlower/mcbackend/internal/mcir"

// Combine implements an instruction-combine rewrite over
// adjacent same-dest, same-width OpBinary RegImm pairs: add/sub chains
// fold to one add with a signed-wrapped immediate, repeated and/or/xor
// fold their immediates bitwise, and repeated same-direction shifts
// collapse with the amount saturated at width-1.
func Combine(ctx *Context) (bool, error) {
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
		if in1.Opcode != mcir.OpBinary || in2.Opcode != mcir.OpBinary {
			newOrder = append(newOrder, ref)
			continue
		}
		ops1 := s.Operands(in1)
		ops2 := s.Operands(in2)
		if ops1[3].Kind != mcir.OperandKindI32 || ops2[3].Kind != mcir.OperandKindI32 {
			newOrder = append(newOrder, ref)
			continue
		}
		if ops1[1].Bits != ops2[1].Bits || ops1[2].Reg != ops2[2].Reg {
			newOrder = append(newOrder, ref)
			continue
		}

		bits := ops1[1].Bits
		dst := ops1[2].Reg
		op1, op2 := ops1[0].Op, ops2[0].Op
		imm1, imm2 := int64(ops1[3].I32), int64(ops2[3].I32)

		combinedOp, combinedImm, ok := combineImmOps(op1, imm1, op2, imm2, bits)
		if !ok {
			newOrder = append(newOrder, ref)
			continue
		}

		merged := s.AppendInstr(mcir.OpBinary, 4)
		mergedIn := s.Instr(merged)
		mergedIn.Flags = in1.Flags
		*s.Operand(mergedIn.Operands, 0) = mcir.OperandMicroOp(combinedOp)
		*s.Operand(mergedIn.Operands, 1) = mcir.OperandBits(bits)
		*s.Operand(mergedIn.Operands, 2) = mcir.OperandReg(dst)
		*s.Operand(mergedIn.Operands, 3) = mcir.OperandI32(combinedImm)

		s.Erase(ref)
		s.Erase(order[i+1])
		newOrder = append(newOrder, merged)
		skipNext = true
		changed = true
	}
	ctx.Order = newOrder
	return changed, nil
}

func combineImmOps(op1 mcir.MicroOp, imm1 int64, op2 mcir.MicroOp, imm2 int64, bits mcir.OpBits) (mcir.MicroOp, int32, bool) {
	isAddSub := func(o mcir.MicroOp) bool { return o == mcir.MicroOpAdd || o == mcir.MicroOpSub }
	if isAddSub(op1) && isAddSub(op2) {
		delta1, delta2 := imm1, imm2
		if op1 == mcir.MicroOpSub {
			delta1 = -delta1
		}
		if op2 == mcir.MicroOpSub {
			delta2 = -delta2
		}
		return mcir.MicroOpAdd, wrapToBits(delta1+delta2, bits), true
	}
	if op1 == op2 {
		switch op1 {
		case mcir.MicroOpAnd:
			return mcir.MicroOpAnd, wrapToBits(imm1&imm2, bits), true
		case mcir.MicroOpOr:
			return mcir.MicroOpOr, wrapToBits(imm1|imm2, bits), true
		case mcir.MicroOpXor:
			return mcir.MicroOpXor, wrapToBits(imm1^imm2, bits), true
		case mcir.MicroOpShl, mcir.MicroOpShr, mcir.MicroOpSar:
			amt := imm1 + imm2
			if max := int64(bits) - 1; amt > max {
				amt = max
			}
			return op1, int32(amt), true
		}
	}
	return mcir.MicroOpInvalid, 0, false
}

func wrapToBits(v int64, bits mcir.OpBits) int32 {
	switch bits {
	case mcir.OpBits8:
		return int32(int8(v))
	case mcir.OpBits16:
		return int32(int16(v))
	case mcir.OpBits32, mcir.OpBits64:
		return int32(v)
	default:
		return int32(v)
	}
}
