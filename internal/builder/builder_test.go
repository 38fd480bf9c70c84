package builder_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/testing/require"
)

func TestBuilder_AllocVRegIsDenseAndPerClass(t *testing.T) {
	b := builder.New()
	i0 := b.AllocVReg(mcir.RegClassInt)
	i1 := b.AllocVReg(mcir.RegClassInt)
	f0 := b.AllocVReg(mcir.RegClassFloat)

	require.Equal(t, uint32(0), i0.Index())
	require.Equal(t, uint32(1), i1.Index())
	require.Equal(t, uint32(0), f0.Index())
	require.Equal(t, mcir.RegClassFloat, f0.Class())
}

func TestBuilder_EncodeCallExternRecordsRelocation(t *testing.T) {
	b := builder.New()
	sym := mcir.IdentRef(7)
	b.EncodeCallExtern(sym, mcir.CallConvSystemV)

	require.Len(t, b.CodeRelocations(), 1)
	reloc := b.CodeRelocations()[0]
	require.Equal(t, mcir.RelocRel32, reloc.Kind)
	require.Equal(t, sym, reloc.Symbol)
	require.Equal(t, int32(0), reloc.Addend)
}

func TestBuilder_EncodeCallLocalDoesNotRecordRelocationYet(t *testing.T) {
	b := builder.New()
	b.EncodeCallLocal(mcir.IdentRef(1), mcir.CallConvSystemV)
	require.Len(t, b.CodeRelocations(), 0)
}

func TestBuilder_ClearCodeRelocations(t *testing.T) {
	b := builder.New()
	b.EncodeCallExtern(mcir.IdentRef(1), mcir.CallConvSystemV)
	require.Len(t, b.CodeRelocations(), 1)
	b.ClearCodeRelocations()
	require.Len(t, b.CodeRelocations(), 0)
}

func TestBuilder_EncodeLabelAndPatchJump(t *testing.T) {
	b := builder.New()
	l1 := b.EncodeLabel()
	jump := b.EncodeJump(mcir.CondEqual, mcir.OpBits32, l1)
	l2 := b.EncodeLabel()

	b.EncodePatchJump(jump, l2)

	in := b.Storage().Instr(jump)
	ops := b.Storage().Operands(in)
	require.Equal(t, l2, ops[len(ops)-1].Label)
}

func TestBuilder_EncodePatchJumpPanicsOnNonLabelTarget(t *testing.T) {
	b := builder.New()
	l1 := b.EncodeLabel()
	jump := b.EncodeJump(mcir.CondEqual, mcir.OpBits32, l1)
	notALabel := b.EncodeNop()

	r := require.CapturePanic(func() { b.EncodePatchJump(jump, notALabel) })
	require.NotNil(t, r)
}

func TestBuilder_EncodeJumpTableAtMaximumSizeDoesNotPanic(t *testing.T) {
	b := builder.New()
	require.Nil(t, require.CapturePanic(func() {
		b.EncodeJumpTable(mcir.NewVirtualReg(mcir.RegClassInt, 0), mcir.JumpTableMaximumOffset, mcir.IdentRef(1))
	}))
}

func TestBuilder_EncodeCallIndirectRequiresIntRegister(t *testing.T) {
	b := builder.New()
	floatReg := b.AllocVReg(mcir.RegClassFloat)
	r := require.CapturePanic(func() {
		b.EncodeCallIndirect(floatReg, mcir.CallConvSystemV)
	})
	require.NotNil(t, r)
}

func TestBuilder_StringRendersInstructionStream(t *testing.T) {
	b := builder.New()
	b.EncodeLoadRegImm(mcir.NewPhysicalReg(mcir.RegClassInt, 0), 42, mcir.OpBits32)
	b.EncodeRet()

	s := b.String()
	require.True(t, len(s) > 0, "expected non-empty rendering")
}
