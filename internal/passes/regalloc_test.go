package passes_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/passes"
	"github.com/microlower/mcbackend/internal/testing/require"
	"github.com/microlower/mcbackend/internal/x64"
)

func newRegAllocCtx(b *builder.Builder) *passes.Context {
	ctx := newCtx(b)
	ctx.CallConvKind = mcir.CallConvSystemV
	return ctx
}

func TestRegAlloc_AssignsDistinctPhysicalRegistersForOverlappingRanges(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	r1 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeLoadRegImm(r0, 1, mcir.OpBits32)
	b.EncodeLoadRegImm(r1, 2, mcir.OpBits32)
	addRef := b.EncodeBinaryRegReg(mcir.MicroOpAdd, r0, r1, mcir.OpBits32)
	ctx := newRegAllocCtx(b)

	require.NoError(t, passes.RegAlloc(ctx))

	ops := b.Storage().Operands(b.Storage().Instr(addRef))
	require.True(t, ops[2].Reg.IsPhysical(), "dst must be assigned a physical register")
	require.True(t, ops[3].Reg.IsPhysical(), "src must be assigned a physical register")
	require.NotEqual(t, ops[2].Reg, ops[3].Reg)
}

func TestRegAlloc_NeverAssignsStackOrFramePointer(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	ref := b.EncodeLoadRegImm(r0, 1, mcir.OpBits32)
	ctx := newRegAllocCtx(b)

	require.NoError(t, passes.RegAlloc(ctx))

	cc := abi.Get(mcir.CallConvSystemV)
	ops := b.Storage().Operands(b.Storage().Instr(ref))
	require.NotEqual(t, cc.StackPointer, ops[0].Reg)
	require.NotEqual(t, cc.FramePointer, ops[0].Reg)
}

func TestRegAlloc_ReusesPhysicalRegisterForNonOverlappingRanges(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	r1 := b.AllocVReg(mcir.RegClassInt)
	first := b.EncodeLoadRegImm(r0, 1, mcir.OpBits32)
	useFirst := b.EncodeBinaryRegImm(mcir.MicroOpAdd, r0, 1, mcir.OpBits32)
	second := b.EncodeLoadRegImm(r1, 2, mcir.OpBits32)
	ctx := newRegAllocCtx(b)

	require.NoError(t, passes.RegAlloc(ctx))

	firstReg := b.Storage().Operands(b.Storage().Instr(first))[0].Reg
	_ = useFirst
	secondReg := b.Storage().Operands(b.Storage().Instr(second))[0].Reg
	require.Equal(t, firstReg, secondReg)
}

// Exactly one more virtual register than allocatableInt has physical
// slots for (12), all kept simultaneously live by deferring every use to
// the tail of the block, forces at least one spill.
func TestRegAlloc_SpillsWhenLiveSetExceedsThePhysicalIntPool(t *testing.T) {
	b := builder.New()
	const n = 13
	regs := make([]mcir.MicroReg, n)
	for i := 0; i < n; i++ {
		regs[i] = b.AllocVReg(mcir.RegClassInt)
		b.EncodeLoadRegImm(regs[i], uint64(i+1), mcir.OpBits32)
	}
	for i := 0; i < n; i++ {
		b.EncodeBinaryRegImm(mcir.MicroOpAdd, regs[i], 0, mcir.OpBits32)
	}
	ctx := newRegAllocCtx(b)

	require.NoError(t, passes.RegAlloc(ctx))
	require.True(t, ctx.SpillAreaSize > 0, "13 simultaneously live int vregs must force at least one spill")
}

func TestRegAlloc_ClobberedIntOmitsCallerSavedRegisters(t *testing.T) {
	b := builder.New()
	r0 := b.AllocVReg(mcir.RegClassInt)
	b.EncodeLoadRegImm(r0, 1, mcir.OpBits32) // the sole live vreg gets the pool's first entry, RAX
	ctx := newRegAllocCtx(b)

	require.NoError(t, passes.RegAlloc(ctx))
	require.Len(t, ctx.ClobberedInt, 0) // RAX is caller-saved under System V; must not be reported as clobbered
}

func TestRegAlloc_ClobberedIntIncludesCalleeSavedUnderPressure(t *testing.T) {
	b := builder.New()
	const n = 13 // exceeds the 7 caller-saved slots in allocatableInt, spilling into RBX/R12-R15
	regs := make([]mcir.MicroReg, n)
	for i := 0; i < n; i++ {
		regs[i] = b.AllocVReg(mcir.RegClassInt)
		b.EncodeLoadRegImm(regs[i], uint64(i+1), mcir.OpBits32)
	}
	for i := 0; i < n; i++ {
		b.EncodeBinaryRegImm(mcir.MicroOpAdd, regs[i], 0, mcir.OpBits32)
	}
	ctx := newRegAllocCtx(b)

	require.NoError(t, passes.RegAlloc(ctx))
	require.True(t, len(ctx.ClobberedInt) > 0, "13 simultaneously live registers must spill into at least one callee-saved register")

	r10, r11 := x64.R10.VReg(), x64.R11.VReg()
	for _, r := range ctx.ClobberedInt {
		require.NotEqual(t, r10, r)
		require.NotEqual(t, r11, r)
	}
}
