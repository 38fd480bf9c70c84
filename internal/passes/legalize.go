package passes

import "github.com/microlower/mcbackend/internal/mcir"

// Legalize rewrites instruction forms the x64 encoder cannot represent
// directly, before register allocation sees them:
//   - an OpBinary ALU immediate that doesn't fit the sign-extended
//     32-bit immediate field is split into a scratch-register load
//     followed by the register-register form;
//   - an OpBinary div/mod's divisor is always forced into a register,
//     regardless of width, since idiv/div have no immediate form at all;
//   - an OpCmpRegImm/OpCmpMemImm immediate that doesn't fit the
//     compare's sign-extended 32-bit field is split the same way;
//   - an OpTernary(op, dst, a, c) is rewritten to OpLoadRegReg(dst, a)
//     followed by OpBinary(op, dst, c), since the target has no true
//     three-operand non-destructive ALU form for these operations;
//   - an OpJumpTable is expanded into a absolute-address load from the
//     table plus an indirect jump, using a scratch register that flows
//     through ordinary register allocation like any other value.
//
// The IR has no mem-to-mem or mem-to-mem-compare opcodes (every load/
// store/compare form already names at most one memory operand), so
// mem-to-mem lowering splits don't apply here.
func Legalize(ctx *Context) error {
	s := ctx.storage()
	b := ctx.Builder
	order := ctx.Order

	newOrder := make([]mcir.Ref, 0, len(order))
	for _, ref := range order {
		in := s.Instr(ref)
		switch in.Opcode {
		case mcir.OpBinary:
			op := s.Operand(in.Operands, 0).Op
			bits := s.Operand(in.Operands, 1).Bits
			srcOp := s.Operand(in.Operands, 3)
			switch {
			case isDivMod(op):
				if srcOp.Kind != mcir.OperandKindReg {
					scratch := b.AllocVReg(mcir.RegClassInt)
					newOrder = append(newOrder, b.EncodeLoadRegImm(scratch, immToU64(*srcOp), bits))
					srcOp.Kind = mcir.OperandKindReg
					srcOp.Reg = scratch
				}
			case srcOp.Kind == mcir.OperandKindU64 && !fitsSignExtend32(srcOp.U64):
				scratch := b.AllocVReg(mcir.RegClassInt)
				newOrder = append(newOrder, b.EncodeLoadRegImm(scratch, srcOp.U64, bits))
				srcOp.Kind = mcir.OperandKindReg
				srcOp.Reg = scratch
			}
		case mcir.OpCmpRegImm:
			immOp := s.Operand(in.Operands, 1)
			if !fitsSignExtend32(immOp.U64) {
				a := s.Operand(in.Operands, 0).Reg
				bits := s.Operand(in.Operands, 2).Bits
				scratch := b.AllocVReg(mcir.RegClassInt)
				newOrder = append(newOrder, b.EncodeLoadRegImm(scratch, immOp.U64, bits))
				newOrder = append(newOrder, b.EncodeCmpRegReg(a, scratch, bits))
				continue
			}
		case mcir.OpCmpMemImm:
			immOp := s.Operand(in.Operands, 1)
			if !fitsSignExtend32(immOp.U64) {
				amc := s.Operand(in.Operands, 0).Amc
				bits := s.Operand(in.Operands, 2).Bits
				scratch := b.AllocVReg(mcir.RegClassInt)
				newOrder = append(newOrder, b.EncodeLoadRegImm(scratch, immOp.U64, bits))
				newOrder = append(newOrder, b.EncodeCmpMemReg(amc, scratch, bits))
				continue
			}
		case mcir.OpTernary:
			op := s.Operand(in.Operands, 0).Op
			bits := s.Operand(in.Operands, 1).Bits
			dst := s.Operand(in.Operands, 2).Reg
			a := s.Operand(in.Operands, 3).Reg
			c := s.Operand(in.Operands, 4).Reg
			newOrder = append(newOrder, b.EncodeLoadRegReg(dst, a, bits))
			newOrder = append(newOrder, b.EncodeBinaryRegReg(op, dst, c, bits))
			continue
		case mcir.OpJumpTable:
			index := s.Operand(in.Operands, 0).Reg
			table := s.Operand(in.Operands, 2).Ident
			scratch := b.AllocVReg(mcir.RegClassInt)
			newOrder = append(newOrder, b.EncodeSymbolRelocAddr(scratch, table, 0))
			newOrder = append(newOrder, b.EncodeLoadAmcRegMem(scratch, mcir.Amc{
				Base: scratch, HasIndex: true, Index: index, Scale: 8,
			}, mcir.OpBits64))
			newOrder = append(newOrder, b.EncodeJumpReg(scratch))
			continue
		}
		newOrder = append(newOrder, ref)
	}
	ctx.Order = newOrder
	return nil
}

func isDivMod(op mcir.MicroOp) bool {
	switch op {
	case mcir.MicroOpDivS, mcir.MicroOpDivU, mcir.MicroOpModS, mcir.MicroOpModU:
		return true
	default:
		return false
	}
}

// immToU64 extracts an immediate Operand's bit pattern regardless of
// whether the builder chose the compact I32 or full U64 encoding.
func immToU64(o mcir.Operand) uint64 {
	if o.Kind == mcir.OperandKindI32 {
		return uint64(uint32(o.I32))
	}
	return o.U64
}

// fitsSignExtend32 reports whether v, reinterpreted as a signed 64-bit
// value, is representable in a sign-extended 32-bit immediate field.
func fitsSignExtend32(v uint64) bool {
	s := int64(v)
	return s >= -(1<<31) && s < (1<<31)
}
