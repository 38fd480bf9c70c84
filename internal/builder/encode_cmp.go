package builder

import "github.com/microlower/mcbackend/internal/mcir"

// EncodeCmpRegReg appends a register-register compare.
func (b *Builder) EncodeCmpRegReg(a, c mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpCmpRegReg, mcir.EmitFlagNone, mcir.OperandReg(a), mcir.OperandReg(c), mcir.OperandBits(bits))
}

// EncodeCmpRegImm appends a register-immediate compare.
func (b *Builder) EncodeCmpRegImm(a mcir.MicroReg, imm int64, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpCmpRegImm, mcir.EmitFlagNone, mcir.OperandReg(a), mcir.OperandU64(uint64(imm)), mcir.OperandBits(bits))
}

// EncodeCmpRegZero appends a compare of reg against zero.
func (b *Builder) EncodeCmpRegZero(a mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpCmpRegZero, mcir.EmitFlagNone, mcir.OperandReg(a), mcir.OperandBits(bits))
}

// EncodeCmpMemReg appends a memory-register compare.
func (b *Builder) EncodeCmpMemReg(amc mcir.Amc, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpCmpMemReg, mcir.EmitFlagNone, mcir.OperandAmcVal(amc), mcir.OperandReg(src), mcir.OperandBits(bits))
}

// EncodeCmpMemImm appends a memory-immediate compare.
func (b *Builder) EncodeCmpMemImm(amc mcir.Amc, imm int64, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpCmpMemImm, mcir.EmitFlagNone, mcir.OperandAmcVal(amc), mcir.OperandU64(uint64(imm)), mcir.OperandBits(bits))
}

// EncodeSetCondReg materializes a condition code as a 0/1 byte in dst.
func (b *Builder) EncodeSetCondReg(cond mcir.Condition, dst mcir.MicroReg) mcir.Ref {
	return b.append(mcir.OpSetCondReg, mcir.EmitFlagNone, mcir.OperandCond(cond), mcir.OperandReg(dst))
}

// EncodeLoadCondRegReg is a conditional-move: dst <- src if cond holds.
func (b *Builder) EncodeLoadCondRegReg(cond mcir.Condition, dst, src mcir.MicroReg) mcir.Ref {
	return b.append(mcir.OpLoadCondRegReg, mcir.EmitFlagNone, mcir.OperandCond(cond), mcir.OperandReg(dst), mcir.OperandReg(src))
}
