package builder

import "github.com/microlower/mcbackend/internal/mcir"

// EncodeLoadRegReg appends dst <- src, both registers, width bits.
func (b *Builder) EncodeLoadRegReg(dst, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	b.assertBits(bits, "EncodeLoadRegReg")
	return b.append(mcir.OpLoadRegReg, mcir.EmitFlagNone, mcir.OperandReg(dst), mcir.OperandReg(src), mcir.OperandBits(bits))
}

// EncodeLoadRegImm writes an immediate into reg, width bits.
func (b *Builder) EncodeLoadRegImm(reg mcir.MicroReg, imm uint64, bits mcir.OpBits) mcir.Ref {
	b.assertBits(bits, "EncodeLoadRegImm")
	return b.append(mcir.OpLoadRegImm, mcir.EmitFlagNone, mcir.OperandReg(reg), mcir.OperandU64(imm), mcir.OperandBits(bits))
}

// EncodeLoadRegMem appends dst <- [base+offset], width bits.
func (b *Builder) EncodeLoadRegMem(dst, base mcir.MicroReg, offset int32, bits mcir.OpBits) mcir.Ref {
	b.assertBits(bits, "EncodeLoadRegMem")
	return b.append(mcir.OpLoadRegMem, mcir.EmitFlagNone,
		mcir.OperandReg(dst), mcir.OperandAmcVal(mcir.Amc{Base: base, Disp: offset}), mcir.OperandBits(bits))
}

// EncodeLoadMemReg appends [base+offset] <- src, width bits.
func (b *Builder) EncodeLoadMemReg(base mcir.MicroReg, offset int32, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	b.assertBits(bits, "EncodeLoadMemReg")
	return b.append(mcir.OpLoadMemReg, mcir.EmitFlagNone,
		mcir.OperandAmcVal(mcir.Amc{Base: base, Disp: offset}), mcir.OperandReg(src), mcir.OperandBits(bits))
}

// EncodeLoadMemImm appends [base+offset] <- imm, width bits.
func (b *Builder) EncodeLoadMemImm(base mcir.MicroReg, offset int32, imm uint64, bits mcir.OpBits) mcir.Ref {
	b.assertBits(bits, "EncodeLoadMemImm")
	return b.append(mcir.OpLoadMemImm, mcir.EmitFlagNone,
		mcir.OperandAmcVal(mcir.Amc{Base: base, Disp: offset}), mcir.OperandU64(imm), mcir.OperandBits(bits))
}

// EncodeLoadRegMemSext appends a sign-extending load, dst <- sext([base+offset]).
func (b *Builder) EncodeLoadRegMemSext(dst, base mcir.MicroReg, offset int32, srcBits, dstBits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpLoadRegMemSext, mcir.EmitFlagNone,
		mcir.OperandReg(dst), mcir.OperandAmcVal(mcir.Amc{Base: base, Disp: offset}),
		mcir.OperandBits(srcBits), mcir.OperandBits(dstBits))
}

// EncodeLoadRegMemZext appends a zero-extending load.
func (b *Builder) EncodeLoadRegMemZext(dst, base mcir.MicroReg, offset int32, srcBits, dstBits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpLoadRegMemZext, mcir.EmitFlagNone,
		mcir.OperandReg(dst), mcir.OperandAmcVal(mcir.Amc{Base: base, Disp: offset}),
		mcir.OperandBits(srcBits), mcir.OperandBits(dstBits))
}

// EncodeLoadRegRegSext appends a sign-extending register-to-register move.
func (b *Builder) EncodeLoadRegRegSext(dst, src mcir.MicroReg, srcBits, dstBits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpLoadRegRegSext, mcir.EmitFlagNone,
		mcir.OperandReg(dst), mcir.OperandReg(src), mcir.OperandBits(srcBits), mcir.OperandBits(dstBits))
}

// EncodeLoadRegRegZext appends a zero-extending register-to-register move.
func (b *Builder) EncodeLoadRegRegZext(dst, src mcir.MicroReg, srcBits, dstBits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpLoadRegRegZext, mcir.EmitFlagNone,
		mcir.OperandReg(dst), mcir.OperandReg(src), mcir.OperandBits(srcBits), mcir.OperandBits(dstBits))
}

// EncodeLoadAddrRegMem appends dst <- &amc (lea).
func (b *Builder) EncodeLoadAddrRegMem(dst mcir.MicroReg, amc mcir.Amc) mcir.Ref {
	return b.append(mcir.OpLoadAddrRegMem, mcir.EmitFlagNone, mcir.OperandReg(dst), mcir.OperandAmcVal(amc))
}

// EncodeLoadAmcRegMem appends dst <- [amc].
func (b *Builder) EncodeLoadAmcRegMem(dst mcir.MicroReg, amc mcir.Amc, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpLoadAmcRegMem, mcir.EmitFlagNone, mcir.OperandReg(dst), mcir.OperandAmcVal(amc), mcir.OperandBits(bits))
}

// EncodeLoadAmcMemReg appends [amc] <- src.
func (b *Builder) EncodeLoadAmcMemReg(amc mcir.Amc, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpLoadAmcMemReg, mcir.EmitFlagNone, mcir.OperandAmcVal(amc), mcir.OperandReg(src), mcir.OperandBits(bits))
}

// EncodeLoadAmcMemImm appends [amc] <- imm.
func (b *Builder) EncodeLoadAmcMemImm(amc mcir.Amc, imm uint64, bits mcir.OpBits) mcir.Ref {
	return b.append(mcir.OpLoadAmcMemImm, mcir.EmitFlagNone, mcir.OperandAmcVal(amc), mcir.OperandU64(imm), mcir.OperandBits(bits))
}
