package builder

import "github.com/microlower/mcbackend/internal/mcir"

// EncodeUnary appends dst := op(dst), in place.
func (b *Builder) EncodeUnary(op mcir.MicroOp, dst mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpUnary, mcir.EmitFlagNone, mcir.OperandMicroOp(op), mcir.OperandBits(bits), mcir.OperandReg(dst))
}

// EncodeBinaryRegReg appends dst := dst op src.
func (b *Builder) EncodeBinaryRegReg(op mcir.MicroOp, dst, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpBinary, mcir.EmitFlagNone,
		mcir.OperandMicroOp(op), mcir.OperandBits(bits), mcir.OperandReg(dst), mcir.OperandReg(src))
}

// EncodeBinaryRegImm appends dst := dst op imm. This is the method
// package abi's Emitter interface calls to materialize the stack-adjust
// sub/add around a call. The immediate is kept as a full 64-bit operand
// when it doesn't fit a sign-extended 32-bit field rather than silently
// truncated; Legalize is the pass responsible for
// splitting such an operand into a scratch-register load, since the x64
// ALU forms this lowers to have no direct imm64 encoding.
func (b *Builder) EncodeBinaryRegImm(op mcir.MicroOp, dst mcir.MicroReg, imm int64, bits mcir.OpBits) mcir.Ref {
	var immOperand mcir.Operand
	if imm >= -(1<<31) && imm < (1<<31) {
		immOperand = mcir.OperandI32(int32(imm))
	} else {
		immOperand = mcir.OperandU64(uint64(imm))
	}
	return b.append(mcir.OpBinary, mcir.EmitFlagNone,
		mcir.OperandMicroOp(op), mcir.OperandBits(bits), mcir.OperandReg(dst), immOperand)
}

// EncodeTernary appends a three-operand ALU form (e.g. a multiply-add
// micro-op some front-ends fuse before lowering).
func (b *Builder) EncodeTernary(op mcir.MicroOp, dst, a, c mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpTernary, mcir.EmitFlagNone,
		mcir.OperandMicroOp(op), mcir.OperandBits(bits), mcir.OperandReg(dst), mcir.OperandReg(a), mcir.OperandReg(c))
}
