package passes_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/passes"
	"github.com/microlower/mcbackend/internal/testing/require"
)

func newCtx(b *builder.Builder) *passes.Context {
	ctx := &passes.Context{Builder: b}
	ctx.Order = b.Storage().View()
	return ctx
}

// mul r0, 8, B32 rewrites to shl r0, 3, B32.
func TestStrengthReduce_MulByPowerOfTwoBecomesShift(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpMulS, r0, 8, mcir.OpBits32)
	ctx := newCtx(b)

	changed, err := passes.StrengthReduce(ctx)
	require.NoError(t, err)
	require.True(t, changed, "expected a rewrite")

	in := b.Storage().Instr(ctx.Order[0])
	ops := b.Storage().Operands(in)
	require.Equal(t, mcir.MicroOpShl, ops[0].Op)
	require.Equal(t, int32(3), ops[3].I32)
}

func TestStrengthReduce_UnsignedDivByPowerOfTwoBecomesShiftRight(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpDivU, r0, 16, mcir.OpBits32)
	ctx := newCtx(b)

	_, err := passes.StrengthReduce(ctx)
	require.NoError(t, err)

	in := b.Storage().Instr(ctx.Order[0])
	ops := b.Storage().Operands(in)
	require.Equal(t, mcir.MicroOpShr, ops[0].Op)
	require.Equal(t, int32(4), ops[3].I32)
}

func TestStrengthReduce_UnsignedModByPowerOfTwoBecomesMask(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpModU, r0, 32, mcir.OpBits32)
	ctx := newCtx(b)

	_, err := passes.StrengthReduce(ctx)
	require.NoError(t, err)

	in := b.Storage().Instr(ctx.Order[0])
	ops := b.Storage().Operands(in)
	require.Equal(t, mcir.MicroOpAnd, ops[0].Op)
	require.Equal(t, int32(31), ops[3].I32)
}

func TestStrengthReduce_NonPowerOfTwoUntouched(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpMulS, r0, 7, mcir.OpBits32)
	ctx := newCtx(b)

	changed, err := passes.StrengthReduce(ctx)
	require.NoError(t, err)
	require.False(t, changed, "7 is not a power of two")
}

func TestStrengthReduce_SignedDivNeverRewritten(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeBinaryRegImm(mcir.MicroOpDivS, r0, 8, mcir.OpBits32)
	ctx := newCtx(b)

	changed, err := passes.StrengthReduce(ctx)
	require.NoError(t, err)
	require.False(t, changed, "signed division floors toward zero, not a shift")
}
