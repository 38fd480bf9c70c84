package passes_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/passes"
	"github.com/microlower/mcbackend/internal/testing/require"
)

func TestCombine_AddAddFoldsToSingleAdd(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, r0, 5, mcir.OpBits32)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, r0, 7, mcir.OpBits32)
	ctx := newCtx(b)

	changed, err := passes.Combine(ctx)
	require.NoError(t, err)
	require.True(t, changed, "expected a fold")
	require.Equal(t, 1, len(ctx.Order))

	in := b.Storage().Instr(ctx.Order[0])
	ops := b.Storage().Operands(in)
	require.Equal(t, mcir.MicroOpAdd, ops[0].Op)
	require.Equal(t, int32(12), ops[3].I32)
}

func TestCombine_AddSubFoldsToSignedDelta(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, r0, 10, mcir.OpBits32)
	b.EncodeBinaryRegImm(mcir.MicroOpSub, r0, 3, mcir.OpBits32)
	ctx := newCtx(b)

	_, err := passes.Combine(ctx)
	require.NoError(t, err)

	in := b.Storage().Instr(ctx.Order[0])
	ops := b.Storage().Operands(in)
	require.Equal(t, mcir.MicroOpAdd, ops[0].Op)
	require.Equal(t, int32(7), ops[3].I32)
}

func TestCombine_AndAndCombinesBitwise(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpAnd, r0, 0xFF, mcir.OpBits32)
	b.EncodeBinaryRegImm(mcir.MicroOpAnd, r0, 0x0F, mcir.OpBits32)
	ctx := newCtx(b)

	_, err := passes.Combine(ctx)
	require.NoError(t, err)

	in := b.Storage().Instr(ctx.Order[0])
	ops := b.Storage().Operands(in)
	require.Equal(t, mcir.MicroOpAnd, ops[0].Op)
	require.Equal(t, int32(0x0F), ops[3].I32)
}

func TestCombine_ShiftAmountsSaturateAtWidthMinusOne(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpShl, r0, 20, mcir.OpBits32)
	b.EncodeBinaryRegImm(mcir.MicroOpShl, r0, 20, mcir.OpBits32)
	ctx := newCtx(b)

	_, err := passes.Combine(ctx)
	require.NoError(t, err)

	in := b.Storage().Instr(ctx.Order[0])
	ops := b.Storage().Operands(in)
	require.Equal(t, int32(31), ops[3].I32)
}

func TestCombine_DifferentDestsNotCombined(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	r1 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, r0, 5, mcir.OpBits32)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, r1, 7, mcir.OpBits32)
	ctx := newCtx(b)

	changed, err := passes.Combine(ctx)
	require.NoError(t, err)
	require.False(t, changed, "different destination registers must not combine")
	require.Equal(t, 2, len(ctx.Order))
}
