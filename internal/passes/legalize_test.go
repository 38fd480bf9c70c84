package passes_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/passes"
	"github.com/microlower/mcbackend/internal/testing/require"
)

func opcodeSeq(b *builder.Builder, order []mcir.Ref) []mcir.Opcode {
	out := make([]mcir.Opcode, len(order))
	for i, ref := range order {
		out[i] = b.Storage().Instr(ref).Opcode
	}
	return out
}

// An ALU immediate beyond the sign-extended 32-bit field becomes a
// scratch-register load followed by the register-register form.
func TestLegalize_SplitsOversizedBinaryImmediate(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	ref := b.EncodeBinaryRegImm(mcir.MicroOpAdd, r0, 0x1_0000_0000, mcir.OpBits64)
	ctx := newCtx(b)

	require.NoError(t, passes.Legalize(ctx))
	require.Equal(t, []mcir.Opcode{mcir.OpLoadRegImm, mcir.OpBinary}, opcodeSeq(b, ctx.Order))

	// The original instruction's immediate operand is now a register.
	ops := b.Storage().Operands(b.Storage().Instr(ref))
	require.Equal(t, mcir.OperandKindReg, ops[3].Kind)
}

// A small immediate stays put: no scratch load, no extra instruction.
func TestLegalize_LeavesEncodableImmediateAlone(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, r0, 42, mcir.OpBits64)
	ctx := newCtx(b)

	require.NoError(t, passes.Legalize(ctx))
	require.Equal(t, []mcir.Opcode{mcir.OpBinary}, opcodeSeq(b, ctx.Order))
}

// div/idiv have no immediate form at all, so even a tiny immediate
// divisor is forced through a register.
func TestLegalize_ForcesDivisorIntoRegister(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	ref := b.EncodeBinaryRegImm(mcir.MicroOpDivU, r0, 3, mcir.OpBits32)
	ctx := newCtx(b)

	require.NoError(t, passes.Legalize(ctx))
	require.Equal(t, []mcir.Opcode{mcir.OpLoadRegImm, mcir.OpBinary}, opcodeSeq(b, ctx.Order))

	ops := b.Storage().Operands(b.Storage().Instr(ref))
	require.Equal(t, mcir.OperandKindReg, ops[3].Kind)
}

func TestLegalize_SplitsOversizedCompareImmediate(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeCmpRegImm(r0, 0x1_0000_0000, mcir.OpBits64)
	ctx := newCtx(b)

	require.NoError(t, passes.Legalize(ctx))
	require.Equal(t, []mcir.Opcode{mcir.OpLoadRegImm, mcir.OpCmpRegReg}, opcodeSeq(b, ctx.Order))
}

// The target has no non-destructive three-operand ALU form, so a
// ternary op becomes copy-then-binary.
func TestLegalize_ExpandsTernaryIntoMoveAndBinary(t *testing.T) {
	b := builder.New()
	dst := b.AllocVReg(mcir.RegClassInt)
	a := b.AllocVReg(mcir.RegClassInt)
	c := b.AllocVReg(mcir.RegClassInt)
	b.EncodeTernary(mcir.MicroOpAdd, dst, a, c, mcir.OpBits64)
	ctx := newCtx(b)

	require.NoError(t, passes.Legalize(ctx))
	require.Equal(t, []mcir.Opcode{mcir.OpLoadRegReg, mcir.OpBinary}, opcodeSeq(b, ctx.Order))

	mov := b.Storage().Operands(b.Storage().Instr(ctx.Order[0]))
	require.Equal(t, dst, mov[0].Reg)
	require.Equal(t, a, mov[1].Reg)
	bin := b.Storage().Operands(b.Storage().Instr(ctx.Order[1]))
	require.Equal(t, dst, bin[2].Reg)
	require.Equal(t, c, bin[3].Reg)
}

// A jump table expands into a table-address materialization, an indexed
// load of the entry, and an indirect jump, none of which the emit pass
// refuses.
func TestLegalize_ExpandsJumpTable(t *testing.T) {
	b := builder.New()
	idx := b.AllocVReg(mcir.RegClassInt)
	b.EncodeJumpTable(idx, 64, mcir.IdentRef(3))
	ctx := newCtx(b)

	require.NoError(t, passes.Legalize(ctx))
	require.Equal(t, []mcir.Opcode{mcir.OpSymbolRelocAddr, mcir.OpLoadAmcRegMem, mcir.OpJumpReg}, opcodeSeq(b, ctx.Order))

	load := b.Storage().Operands(b.Storage().Instr(ctx.Order[1]))
	require.Equal(t, true, load[1].Amc.HasIndex)
	require.Equal(t, idx, load[1].Amc.Index)
	require.Equal(t, byte(8), load[1].Amc.Scale)
}
