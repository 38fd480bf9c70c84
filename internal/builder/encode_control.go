package builder

import "github.com/microlower/mcbackend/internal/mcir"

// EncodeRet appends a return.
func (b *Builder) EncodeRet() mcir.Ref { return b.append(mcir.OpRet, mcir.EmitFlagNone) }

// EncodeCallLocal appends a call to a symbol defined within the same
// module (no relocation is recorded at this layer; the pass pipeline's
// emit stage records a Rel32 relocation for every local call, since the
// symbol's final address is not known at encode time).
func (b *Builder) EncodeCallLocal(sym mcir.IdentRef, cc mcir.CallConvKind) mcir.Ref {
	return b.append(mcir.OpCallLocal, mcir.EmitFlagNone, mcir.OperandIdent(sym), mcir.OperandCallConv(cc))
}

// EncodeCallExtern appends a call to a symbol resolved by the host
// linker, recording a Rel32 code relocation. The call targets sym
// exactly, so the addend is zero; the relocation is applied as
// symbolAddress - (CodeOffset+4), the "+4" already accounting for rel32
// being relative to the byte past the displacement field.
func (b *Builder) EncodeCallExtern(sym mcir.IdentRef, cc mcir.CallConvKind) mcir.Ref {
	ref := b.append(mcir.OpCallExtern, mcir.EmitFlagNone, mcir.OperandIdent(sym), mcir.OperandCallConv(cc))
	b.recordRelocation(mcir.RelocRel32, ref, sym, 0)
	return ref
}

// EncodeCallIndirect appends a call through a register.
func (b *Builder) EncodeCallIndirect(reg mcir.MicroReg, cc mcir.CallConvKind) mcir.Ref {
	b.assertClass(reg, mcir.RegClassInt, "EncodeCallIndirect")
	return b.append(mcir.OpCallIndirect, mcir.EmitFlagNone, mcir.OperandReg(reg), mcir.OperandCallConv(cc))
}

// EncodeJump appends a conditional jump targeting label (an earlier or
// later EncodeLabel's Ref). At this IR layer no bytes exist yet; the
// encoder-level mcir.MicroJump with its byte-offset-to-patch is only
// created later, during the emit pass, when the encoder
// actually lays down the opcode and a zeroed displacement for this
// instruction.
func (b *Builder) EncodeJump(cond mcir.Condition, bits mcir.OpBits, label mcir.Ref) mcir.Ref {
	return b.append(mcir.OpJumpCond, mcir.EmitFlagNone,
		mcir.OperandCond(cond), mcir.OperandBits(bits), mcir.OperandLabel(label))
}

// EncodeJumpCondImm appends a JumpCondImm whose immediate operand is the
// direct branch target offset. Front-ends should prefer EncodeJump;
// this remains only so legacy lowerings that already emit JumpCondImm
// keep working.
func (b *Builder) EncodeJumpCondImm(cond mcir.Condition, targetOffset int32) mcir.Ref {
	return b.append(mcir.OpJumpCondImm, mcir.EmitFlagNone, mcir.OperandCond(cond), mcir.OperandI32(targetOffset))
}

// EncodeJumpReg appends an indirect jump through a register.
func (b *Builder) EncodeJumpReg(reg mcir.MicroReg) mcir.Ref {
	return b.append(mcir.OpJumpReg, mcir.EmitFlagNone, mcir.OperandReg(reg))
}

// EncodeJumpTable appends a jump-table dispatch: index selects one of
// the table's entries, bounded by JumpTableMaximumOffset.
func (b *Builder) EncodeJumpTable(index mcir.MicroReg, tableByteSize uint32, table mcir.IdentRef) mcir.Ref {
	if uint64(tableByteSize) > mcir.JumpTableMaximumOffset {
		panic("BUG: jump table exceeds JumpTableMaximumOffset")
	}
	return b.append(mcir.OpJumpTable, mcir.EmitFlagNone,
		mcir.OperandReg(index), mcir.OperandU32(tableByteSize), mcir.OperandIdent(table))
}

// EncodePatchJump rewires an already-emitted EncodeJump's IR-level label
// target. This is the IR-layer patch (retargeting which label a jump
// names); the encoder-level byte patch (x64.Encoder.PatchJump, rewriting
// the already-emitted displacement bytes) happens only during the emit
// pass.
func (b *Builder) EncodePatchJump(jump mcir.Ref, newLabel mcir.Ref) {
	if !b.labelAt[newLabel] {
		panic("BUG: EncodePatchJump target is not a label")
	}
	in := b.storage.Instr(jump)
	if in.Opcode != mcir.OpJumpCond {
		panic("BUG: EncodePatchJump called on a non-jump instruction")
	}
	*b.storage.Operand(in.Operands, int(in.NumOps)-1) = mcir.OperandLabel(newLabel)
}
