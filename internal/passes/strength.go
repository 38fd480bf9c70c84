package passes

import "github.com/microlower/mcbackend/internal/mcir"

// StrengthReduce implements strength reduction: a
// multiply or unsigned divide/modulo by a power of two is rewritten to
// the equivalent shift/mask, for both signed and unsigned multiplies
// (multiplication by 2^k is exact in both domains; only division and
// remainder must stay unsigned-only, since a signed division floors
// toward zero rather than toward -infinity).
func StrengthReduce(ctx *Context) (bool, error) {
	s := ctx.storage()
	order := ctx.Order
	changed := false

	for _, ref := range order {
		in := s.Instr(ref)
		if in.Opcode != mcir.OpBinary {
			continue
		}
		ops := s.Operands(in)
		if ops[3].Kind != mcir.OperandKindI32 {
			continue
		}
		op := ops[0].Op
		imm := int64(ops[3].I32)
		bits := ops[1].Bits

		k, isPow2 := log2OfPowerOfTwo(imm)
		if !isPow2 || k >= int(bits) {
			continue
		}

		var newOp mcir.MicroOp
		switch op {
		case mcir.MicroOpMulS, mcir.MicroOpMulU:
			newOp = mcir.MicroOpShl
		case mcir.MicroOpDivU:
			newOp = mcir.MicroOpShr
		case mcir.MicroOpModU:
			*s.Operand(in.Operands, 0) = mcir.OperandMicroOp(mcir.MicroOpAnd)
			*s.Operand(in.Operands, 3) = mcir.OperandI32(int32(imm - 1))
			changed = true
			continue
		default:
			continue
		}
		*s.Operand(in.Operands, 0) = mcir.OperandMicroOp(newOp)
		*s.Operand(in.Operands, 3) = mcir.OperandI32(int32(k))
		changed = true
	}
	return changed, nil
}

// log2OfPowerOfTwo reports (log2(v), true) when v is a positive power of
// two, and (0, false) otherwise.
func log2OfPowerOfTwo(v int64) (int, bool) {
	if v <= 0 || v&(v-1) != 0 {
		return 0, false
	}
	k := 0
	for v > 1 {
		v >>= 1
		k++
	}
	return k, true
}
