package builder

import "github.com/microlower/mcbackend/internal/mcir"

// EncodeSymbolRelocAddr loads the absolute address of sym+addend into
// dst, recording an Abs64 code relocation.
func (b *Builder) EncodeSymbolRelocAddr(dst mcir.MicroReg, sym mcir.IdentRef, addend int32) mcir.Ref {
	ref := b.append(mcir.OpSymbolRelocAddr, mcir.EmitFlagNone, mcir.OperandReg(dst), mcir.OperandIdent(sym), mcir.OperandI32(addend))
	b.recordRelocation(mcir.RelocAbs64, ref, sym, addend)
	return ref
}

// EncodeSymbolRelocValue emits a PC-relative reference to sym+addend
// (e.g. the immediate operand of a call or a RIP-relative load),
// recording a Rel32 code relocation.
func (b *Builder) EncodeSymbolRelocValue(sym mcir.IdentRef, addend int32) mcir.Ref {
	ref := b.append(mcir.OpSymbolRelocValue, mcir.EmitFlagNone, mcir.OperandIdent(sym), mcir.OperandI32(addend))
	b.recordRelocation(mcir.RelocRel32, ref, sym, addend)
	return ref
}
