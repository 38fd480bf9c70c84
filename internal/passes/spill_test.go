package passes_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/passes"
	"github.com/microlower/mcbackend/internal/testing/require"
)

// Forcing a spill must rewrite the spilled vreg's uses and defs into a
// reload/store pair addressed off the frame pointer, never the stack
// pointer or some other base: spillAddr (spill.go) always keys off
// cc.FramePointer, which is only a valid base once prolog/epilog has
// established it.
func TestRegAlloc_SpillCodeAddressesSlotsOffTheFramePointer(t *testing.T) {
	b := builder.New()
	const n = 13 // one more than allocatableInt's 12 physical slots
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
	require.True(t, ctx.SpillAreaSize > 0)

	cc := abi.Get(mcir.CallConvSystemV)
	s := b.Storage()
	sawReload, sawStore := false, false
	for _, ref := range ctx.Order {
		in := s.Instr(ref)
		switch in.Opcode {
		case mcir.OpLoadRegMem:
			amc := s.Operands(in)[1].Amc
			require.Equal(t, cc.FramePointer, amc.Base)
			sawReload = true
		case mcir.OpLoadMemReg:
			amc := s.Operands(in)[0].Amc
			require.Equal(t, cc.FramePointer, amc.Base)
			sawStore = true
		}
	}
	require.True(t, sawReload, "expected at least one spill reload through the frame pointer")
	require.True(t, sawStore, "expected at least one spill store through the frame pointer")
}

// Every spill slot offset must be distinct and non-negative relative to
// the frame pointer: two live vregs spilled into the same slot would
// silently alias each other's storage.
func TestRegAlloc_SpillSlotsDoNotOverlap(t *testing.T) {
	b := builder.New()
	const n = 14 // two spills worth of pressure
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

	cc := abi.Get(mcir.CallConvSystemV)
	s := b.Storage()
	distinctSlots := map[int32]bool{}
	for _, ref := range ctx.Order {
		in := s.Instr(ref)
		if in.Opcode != mcir.OpLoadMemReg {
			continue
		}
		distinctSlots[s.Operands(in)[0].Amc.Disp] = true
	}
	require.True(t, len(distinctSlots) > 0)
	require.Equal(t, ctx.SpillAreaSize, int64(len(distinctSlots))*cc.StackSlotSize)
}
