package passes

import (
	"fmt"

	"github.com/microlower/mcbackend/internal/mcir"
)

// pendingJump is one OpJumpCond whose displacement is emitted zeroed and
// resolved only once every label in the function has been visited.
type pendingJump struct {
	jump  mcir.MicroJump
	label mcir.Ref
}

// Emit walks the final instruction order and dispatches each opcode to
// its encoder entry point, the one place where an IR-level Ref
// (a label, a jump's target, a relocation's owning instruction) becomes
// a concrete byte offset. Three tables are threaded through the single
// walk:
//
//   - labelOffsets: filled when an OpLabel is visited, read back once
//     every jump has been seen.
//   - pending: one entry per OpJumpCond/OpJumpCondImm, resolved against
//     labelOffsets after the walk.
//   - fieldOffset: the byte offset of the relocatable field itself (not
//     the instruction's start) for every relocation-bearing opcode,
//     bound against Builder.CodeRelocations() after the walk.
//
// Every MicroJump must end up Valid and patched; an unresolved jump
// after this pass is an internal bug.
func Emit(ctx *Context) error {
	s := ctx.storage()
	e := ctx.Encoder

	labelOffsets := map[mcir.Ref]int{}
	fieldOffset := map[mcir.Ref]int{}
	var pending []pendingJump

	// The walk below re-records a relocation for every relocating
	// instruction it visits, so anything accumulated earlier (at build
	// time, or by a legalize-synthesized instruction) would double up.
	ctx.Builder.ClearCodeRelocations()

	for _, ref := range ctx.Order {
		in := s.Instr(ref)
		ops := s.Operands(in)

		switch in.Opcode {
		// --- pseudo: no bytes, or bookkeeping only ---
		case mcir.OpEnd, mcir.OpIgnore, mcir.OpDebug, mcir.OpEnter, mcir.OpLeave:
			continue
		case mcir.OpLabel:
			labelOffsets[ref] = e.CurrentOffset()
			continue
		case mcir.OpNop:
			e.EncodeNop()

		// --- stack ---
		case mcir.OpPush:
			e.EncodePush(ops[0].Reg)
		case mcir.OpPop:
			e.EncodePop(ops[0].Reg)

		// --- control ---
		case mcir.OpRet:
			e.EncodeRet()
		case mcir.OpCallLocal, mcir.OpCallExtern:
			// Both call forms re-record their relocation here rather
			// than trusting the builder's own table: the entry point
			// clears that table before the pipeline runs (passes may
			// be re-entered), so the instruction stream is the only
			// durable record of which instructions relocate.
			off := e.EncodeCallRel32()
			fieldOffset[ref] = off
			ctx.Builder.RecordRelocation(mcir.RelocRel32, ref, ops[0].Ident, 0)
		case mcir.OpCallIndirect:
			e.EncodeCallIndirect(ops[0].Reg)
		case mcir.OpJumpCond:
			label := ops[len(ops)-1].Label
			cond := ops[0].Cond
			var mj mcir.MicroJump
			if cond.IsAlways() {
				mj = e.EncodeJump()
			} else {
				mj = e.EncodeJumpCond(cond)
			}
			pending = append(pending, pendingJump{jump: mj, label: label})
		case mcir.OpJumpCondImm:
			// The immediate names the direct branch target's
			// already-resolved byte offset, not a label to look up
			// later, so it patches immediately rather than joining
			// `pending`.
			cond := ops[0].Cond
			var mj mcir.MicroJump
			if cond.IsAlways() {
				mj = e.EncodeJump()
			} else {
				mj = e.EncodeJumpCond(cond)
			}
			e.PatchJump(mj, int(ops[1].I32))
		case mcir.OpJumpReg:
			e.EncodeJumpReg(ops[0].Reg)
		case mcir.OpJumpTable:
			panic("BUG: OpJumpTable reached emit; legalize must expand it first")
		case mcir.OpPatchJump:
			panic("BUG: OpPatchJump is never appended to the instruction stream")

		// --- loads/stores ---
		case mcir.OpLoadRegReg:
			e.EncodeLoadRegReg(ops[0].Reg, ops[1].Reg, ops[2].Bits)
		case mcir.OpLoadRegImm:
			e.EncodeLoadRegImm(ops[0].Reg, ops[1].U64, ops[2].Bits)
		case mcir.OpLoadRegMem:
			e.EncodeLoadRegMem(ops[0].Reg, ops[1].Amc, ops[2].Bits)
		case mcir.OpLoadMemReg:
			e.EncodeLoadMemReg(ops[0].Amc, ops[1].Reg, ops[2].Bits)
		case mcir.OpLoadMemImm:
			e.EncodeLoadMemImm(ops[0].Amc, ops[1].U64, ops[2].Bits)
		case mcir.OpLoadRegMemSext:
			e.EncodeLoadRegMemSext(ops[0].Reg, ops[1].Amc, ops[2].Bits, ops[3].Bits)
		case mcir.OpLoadRegMemZext:
			e.EncodeLoadRegMemZext(ops[0].Reg, ops[1].Amc, ops[2].Bits, ops[3].Bits)
		case mcir.OpLoadRegRegSext:
			e.EncodeLoadRegRegSext(ops[0].Reg, ops[1].Reg, ops[2].Bits, ops[3].Bits)
		case mcir.OpLoadRegRegZext:
			e.EncodeLoadRegRegZext(ops[0].Reg, ops[1].Reg, ops[2].Bits, ops[3].Bits)

		// --- addressing-mode computations ---
		case mcir.OpLoadAddrRegMem:
			e.EncodeLoadAddrRegMem(ops[0].Reg, ops[1].Amc)
		case mcir.OpLoadAmcRegMem:
			e.EncodeLoadAmcRegMem(ops[0].Reg, ops[1].Amc, ops[2].Bits)
		case mcir.OpLoadAmcMemReg:
			e.EncodeLoadAmcMemReg(ops[0].Amc, ops[1].Reg, ops[2].Bits)
		case mcir.OpLoadAmcMemImm:
			e.EncodeLoadAmcMemImm(ops[0].Amc, ops[1].U64, ops[2].Bits)

		// --- comparisons ---
		case mcir.OpCmpRegReg:
			e.EncodeCmpRegReg(ops[0].Reg, ops[1].Reg, ops[2].Bits)
		case mcir.OpCmpRegImm:
			e.EncodeCmpRegImm(ops[0].Reg, int64(ops[1].U64), ops[2].Bits)
		case mcir.OpCmpRegZero:
			e.EncodeCmpRegZero(ops[0].Reg, ops[1].Bits)
		case mcir.OpCmpMemReg:
			e.EncodeCmpMemReg(ops[0].Amc, ops[1].Reg, ops[2].Bits)
		case mcir.OpCmpMemImm:
			e.EncodeCmpMemImm(ops[0].Amc, int64(ops[1].U64), ops[2].Bits)

		// --- condition-code materialization ---
		case mcir.OpSetCondReg:
			e.EncodeSetCondReg(ops[0].Cond, ops[1].Reg)
		case mcir.OpLoadCondRegReg:
			e.EncodeLoadCondRegReg(ops[0].Cond, ops[1].Reg, ops[2].Reg)

		// --- ALU ---
		case mcir.OpUnary:
			e.EncodeUnary(ops[0].Op, ops[2].Reg, ops[1].Bits)
		case mcir.OpBinary:
			emitBinary(e, ops)
		case mcir.OpTernary:
			panic("BUG: OpTernary reached emit; legalize must expand it first")

		// --- symbol relocations ---
		case mcir.OpSymbolRelocAddr:
			off := e.EncodeSymbolRelocAddr(ops[0].Reg)
			fieldOffset[ref] = off
			ctx.Builder.RecordRelocation(mcir.RelocAbs64, ref, ops[1].Ident, ops[2].I32)
		case mcir.OpSymbolRelocValue:
			off := e.EncodeSymbolRelocValue()
			fieldOffset[ref] = off
			ctx.Builder.RecordRelocation(mcir.RelocRel32, ref, ops[0].Ident, ops[1].I32)

		default:
			panic(fmt.Sprintf("BUG: emit has no lowering for opcode %s", in.Opcode))
		}
	}

	for _, pj := range pending {
		target, ok := labelOffsets[pj.label]
		if !ok {
			panic(fmt.Sprintf("BUG: jump targets label %d which was never visited", pj.label))
		}
		e.PatchJump(pj.jump, target)
	}

	relocs := ctx.Builder.CodeRelocations()
	out := make([]mcir.CodeRelocation, len(relocs))
	for i, cr := range relocs {
		off, ok := fieldOffset[cr.Instr]
		if !ok {
			panic("BUG: code relocation's owning instruction never reached emit")
		}
		cr.CodeOffset = uint32(off)
		out[i] = cr
	}

	ctx.ResultBytes = e.CopyTo()
	ctx.ResultRelocations = out
	return nil
}

// emitBinary dispatches an OpBinary micro-instruction: the divide family
// always names its divisor in a register (legalize's job), and
// everything else is either a reg-reg or reg-imm ALU op depending on
// which form Legalize left operand[3] in.
func emitBinary(e interface {
	EncodeDivMod(op mcir.MicroOp, dst, src mcir.MicroReg, bits mcir.OpBits)
	EncodeBinaryRegReg(op mcir.MicroOp, dst, src mcir.MicroReg, bits mcir.OpBits)
	EncodeBinaryRegImm(op mcir.MicroOp, dst mcir.MicroReg, imm int32, bits mcir.OpBits)
}, ops []mcir.Operand) {
	op := ops[0].Op
	bits := ops[1].Bits
	dst := ops[2].Reg
	src := ops[3]

	if isDivMod(op) {
		if src.Kind != mcir.OperandKindReg {
			panic("BUG: div/mod reached emit with a non-register divisor; legalize must force one")
		}
		e.EncodeDivMod(op, dst, src.Reg, bits)
		return
	}
	if src.Kind == mcir.OperandKindReg {
		e.EncodeBinaryRegReg(op, dst, src.Reg, bits)
		return
	}
	e.EncodeBinaryRegImm(op, dst, src.I32, bits)
}
