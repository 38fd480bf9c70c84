package passes_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/passes"
	"github.com/microlower/mcbackend/internal/testing/require"
)

// A branch over two arms that each define and immediately consume their
// own vreg, joining at a shared label, must not let the two arms'
// ranges collide: each arm sees the other's definition as dead, so
// linear scan can hand both the same physical register.
func TestRegAlloc_LivenessTreatsDisjointBranchArmsAsNonOverlapping(t *testing.T) {
	b := builder.New()
	rThen := b.AllocVReg(mcir.RegClassInt)
	rElse := b.AllocVReg(mcir.RegClassInt)

	j := b.EncodeJump(mcir.CondEqual, mcir.OpBits32, 0)
	thenDef := b.EncodeLoadRegImm(rThen, 1, mcir.OpBits32)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, rThen, 1, mcir.OpBits32)
	skip := b.EncodeJump(mcir.CondAlways, mcir.OpBits32, 0)
	elseLabel := b.EncodeLabel()
	b.EncodePatchJump(j, elseLabel)
	elseDef := b.EncodeLoadRegImm(rElse, 2, mcir.OpBits32)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, rElse, 1, mcir.OpBits32)
	joinLabel := b.EncodeLabel()
	b.EncodePatchJump(skip, joinLabel)

	ctx := newRegAllocCtx(b)
	require.NoError(t, passes.RegAlloc(ctx))

	thenReg := b.Storage().Operands(b.Storage().Instr(thenDef))[0].Reg
	elseReg := b.Storage().Operands(b.Storage().Instr(elseDef))[0].Reg
	require.Equal(t, thenReg, elseReg) // disjoint branch arms should not need distinct physical registers
}

// A vreg still live across a label (its last use follows the label) must
// keep its physical register distinct from one that is already dead by
// the time the label is reached.
func TestRegAlloc_LivenessKeepsRegisterLiveAcrossLabelWhenUsedAfter(t *testing.T) {
	b := builder.New()
	rDead := b.AllocVReg(mcir.RegClassInt)
	rLive := b.AllocVReg(mcir.RegClassInt)

	deadDef := b.EncodeLoadRegImm(rDead, 1, mcir.OpBits32)
	liveDef := b.EncodeLoadRegImm(rLive, 2, mcir.OpBits32)
	b.EncodeBinaryRegImm(mcir.MicroOpAdd, rDead, 1, mcir.OpBits32) // rDead's last use: its range overlaps rLive's definition
	b.EncodeLabel()
	useLive := b.EncodeBinaryRegImm(mcir.MicroOpAdd, rLive, 1, mcir.OpBits32) // rLive's last use, after the label

	ctx := newRegAllocCtx(b)
	require.NoError(t, passes.RegAlloc(ctx))

	deadReg := b.Storage().Operands(b.Storage().Instr(deadDef))[0].Reg
	liveReg := b.Storage().Operands(b.Storage().Instr(liveDef))[0].Reg
	useLiveReg := b.Storage().Operands(b.Storage().Instr(useLive))[2].Reg
	require.Equal(t, liveReg, useLiveReg) // rLive keeps the same physical register across the label
	require.NotEqual(t, deadReg, liveReg) // reuse of a dead vreg's slot must not corrupt a still-live one
}
