package abi_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/testing/require"
)

// recordingEmitter implements abi.Emitter by appending a description of
// each call to a string slice, so call-lowering tests can assert on
// emission order without going through the full builder/encoder.
// moveDsts additionally keeps every register-move destination, so
// slot-placement tests can assert which argument register each value
// landed in.
type recordingEmitter struct {
	ops      []string
	moveDsts []mcir.MicroReg
}

func (r *recordingEmitter) record(op string) mcir.Ref {
	r.ops = append(r.ops, op)
	return mcir.Ref(len(r.ops))
}

func (r *recordingEmitter) EncodeBinaryRegImm(op mcir.MicroOp, dst mcir.MicroReg, imm int64, bits mcir.OpBits) mcir.Ref {
	return r.record("binop")
}
func (r *recordingEmitter) EncodeLoadRegReg(dst, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	r.moveDsts = append(r.moveDsts, dst)
	return r.record("reg<-reg")
}
func (r *recordingEmitter) EncodeLoadRegImm(dst mcir.MicroReg, imm uint64, bits mcir.OpBits) mcir.Ref {
	return r.record("reg<-imm")
}
func (r *recordingEmitter) EncodeLoadRegMem(dst mcir.MicroReg, base mcir.MicroReg, offset int32, bits mcir.OpBits) mcir.Ref {
	return r.record("reg<-mem")
}
func (r *recordingEmitter) EncodeLoadMemReg(base mcir.MicroReg, offset int32, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref {
	return r.record("mem<-reg")
}
func (r *recordingEmitter) EncodeCallLocal(sym mcir.IdentRef, cc abi.CallConvKind) mcir.Ref {
	return r.record("call-local")
}
func (r *recordingEmitter) EncodeCallExtern(sym mcir.IdentRef, cc abi.CallConvKind) mcir.Ref {
	return r.record("call-extern")
}
func (r *recordingEmitter) EncodeCallIndirect(reg mcir.MicroReg, cc abi.CallConvKind) mcir.Ref {
	return r.record("call-indirect")
}

// Two integer arguments on the Windows convention both fit in
// registers, so no stack argument is spilled, but the shadow space
// still forces a non-zero stack adjust around the call.
func TestLowerCall_TwoIntArgsWindowsConvention(t *testing.T) {
	cc := abi.Get(abi.CallConvWindows)
	e := &recordingEmitter{}

	args := []abi.PreparedArg{
		{Type: abi.NormalizedABIType{NumBits: 64, Kind: abi.ArgKindScalar}, Reg: mcir.NewPhysicalReg(mcir.RegClassInt, 8)},
		{Type: abi.NormalizedABIType{NumBits: 64, Kind: abi.ArgKindScalar}, Reg: mcir.NewPhysicalReg(mcir.RegClassInt, 9)},
	}
	f := mcir.IdentRef(2)

	abi.LowerCall(e, cc, args, abi.NormalizedABIType{IsVoid: true}, mcir.MicroReg(0), abi.CallTarget{DirectSymbol: f, IsDirect: true})

	require.Equal(t, []string{"binop", "reg<-reg", "reg<-reg", "call-local", "binop"}, e.ops)
}

func TestLowerCall_ExcessArgsSpillToStack(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}

	var args []abi.PreparedArg
	for i := 0; i < cc.NumArgRegisterSlots()+1; i++ {
		args = append(args, abi.PreparedArg{
			Type: abi.NormalizedABIType{NumBits: 64, Kind: abi.ArgKindScalar},
			Reg:  mcir.NewPhysicalReg(mcir.RegClassInt, uint8(i)),
		})
	}
	f := mcir.IdentRef(3)

	abi.LowerCall(e, cc, args, abi.NormalizedABIType{IsVoid: true}, mcir.MicroReg(0), abi.CallTarget{DirectSymbol: f, IsDirect: true})

	// The last prepared arg, beyond the register budget, must place via
	// a memory store rather than a register move.
	require.Equal(t, "mem<-reg", e.ops[len(e.ops)-3])
}

// A small scalar-leaf aggregate occupies one positional slot per
// recorded eightbyte: the integer leaf goes to the slot's integer
// register, the float leaf to the next slot's float register, and the
// following declared argument shifts past both.
func TestLowerCall_TwoRegisterAggregateOccupiesTwoSlots(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}

	agg := abi.NormalizedABIType{
		Kind:  abi.ArgKindScalar,
		Slots: []abi.AggregateLeaf{{IsFloat: false, NumBits: 64}, {IsFloat: true, NumBits: 64}},
	}
	args := []abi.PreparedArg{
		{Type: agg, Reg: mcir.NewPhysicalReg(mcir.RegClassInt, 8), Reg2: mcir.NewPhysicalReg(mcir.RegClassFloat, 8)},
		{Type: abi.NormalizedABIType{NumBits: 64, Kind: abi.ArgKindScalar}, Reg: mcir.NewPhysicalReg(mcir.RegClassInt, 9)},
	}

	abi.LowerCall(e, cc, args, abi.NormalizedABIType{IsVoid: true}, mcir.MicroReg(0), abi.CallTarget{DirectSymbol: mcir.IdentRef(8), IsDirect: true})

	require.Equal(t, []string{"binop", "reg<-reg", "reg<-reg", "reg<-reg", "call-local", "binop"}, e.ops)
	require.Equal(t, []mcir.MicroReg{cc.IntArgRegs[0], cc.FloatArgRegs[1], cc.IntArgRegs[2]}, e.moveDsts)
}

// An aggregate whose two eightbytes straddle the register budget splits:
// the first lands in the last argument register, the second spills to
// the outgoing stack area, and the stack adjust covers it.
func TestLowerCall_AggregateSplitAcrossRegisterAndStack(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}

	var args []abi.PreparedArg
	for i := 0; i < cc.NumArgRegisterSlots()-1; i++ {
		args = append(args, abi.PreparedArg{
			Type: abi.NormalizedABIType{NumBits: 64, Kind: abi.ArgKindScalar},
			Reg:  mcir.NewPhysicalReg(mcir.RegClassInt, uint8(i)),
		})
	}
	agg := abi.NormalizedABIType{
		Kind:  abi.ArgKindScalar,
		Slots: []abi.AggregateLeaf{{NumBits: 64}, {NumBits: 64}},
	}
	args = append(args, abi.PreparedArg{
		Type: agg,
		Reg:  mcir.NewPhysicalReg(mcir.RegClassInt, 8),
		Reg2: mcir.NewPhysicalReg(mcir.RegClassInt, 9),
	})

	abi.LowerCall(e, cc, args, abi.NormalizedABIType{IsVoid: true}, mcir.MicroReg(0), abi.CallTarget{DirectSymbol: mcir.IdentRef(9), IsDirect: true})

	// Five scalar moves, the aggregate's first eightbyte as a sixth
	// move, its second as a stack store, bracketed by the stack
	// adjust/teardown pair around the call.
	require.Equal(t, []string{
		"binop",
		"reg<-reg", "reg<-reg", "reg<-reg", "reg<-reg", "reg<-reg",
		"reg<-reg",
		"mem<-reg",
		"call-local",
		"binop",
	}, e.ops)
	require.Equal(t, cc.IntArgRegs[cc.NumArgRegisterSlots()-1], e.moveDsts[len(e.moveDsts)-1])
}

func TestLowerCall_IndirectReturnOccupiesImplicitArg0(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}

	ret := abi.NormalizedABIType{IsIndirect: true, IndirectSize: 32, IndirectAlign: 8, Kind: abi.ArgKindIndirect}
	abi.LowerCall(e, cc, nil, ret, mcir.NewPhysicalReg(mcir.RegClassInt, 0), abi.CallTarget{DirectSymbol: mcir.IdentRef(4), IsDirect: true})

	// One "reg<-reg" for the implicit hidden-pointer argument, then the
	// call; no return-value shuttle since the callee already wrote
	// through the pointer. The leading/trailing "binop" pair realigns
	// the stack for the call instruction's own return-address push, even
	// with zero declared arguments and no shadow space.
	require.Equal(t, []string{"binop", "reg<-reg", "call-local", "binop"}, e.ops)
}

func TestLowerCall_IndirectCallTarget(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}

	target := abi.CallTarget{IsIndirectReg: true, IndirectReg: mcir.NewPhysicalReg(mcir.RegClassInt, 0)}
	abi.LowerCall(e, cc, nil, abi.NormalizedABIType{IsVoid: true}, mcir.MicroReg(0), target)

	require.Equal(t, []string{"binop", "call-indirect", "binop"}, e.ops)
}

// A scalar, non-indirect return whose destination differs from the
// convention's return register gets an explicit shuttle move after the
// call returns.
func TestLowerCall_ScalarReturnShuttledToRequestedDestReg(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}

	ret := abi.NormalizedABIType{NumBits: 64, Kind: abi.ArgKindScalar}
	retDst := mcir.NewPhysicalReg(mcir.RegClassInt, 1) // RCX, distinct from cc.IntReturn (RAX)
	abi.LowerCall(e, cc, nil, ret, retDst, abi.CallTarget{DirectSymbol: mcir.IdentRef(5), IsDirect: true})

	require.Equal(t, []string{"binop", "call-local", "reg<-reg", "binop"}, e.ops)
}

// A scalar return whose destination already is the convention's return
// register skips the shuttle entirely: LowerCall treats retDst as an
// ordinary virtual register destination, exactly like every other
// instruction's def in this IR, so a no-op move is never emitted rather
// than being folded away by a later pass.
func TestLowerCall_ScalarReturnSkipsShuttleWhenAlreadyInReturnReg(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}

	ret := abi.NormalizedABIType{NumBits: 64, Kind: abi.ArgKindScalar}
	abi.LowerCall(e, cc, nil, ret, cc.IntReturn, abi.CallTarget{DirectSymbol: mcir.IdentRef(6), IsDirect: true})

	require.Equal(t, []string{"binop", "call-local", "binop"}, e.ops)
}

// A float (XMM0) return shuttles through FloatReturn rather than
// IntReturn.
func TestLowerCall_FloatReturnShuttledFromFloatReturnReg(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}

	ret := abi.NormalizedABIType{NumBits: 64, Kind: abi.ArgKindScalar, IsFloat: true}
	retDst := mcir.NewPhysicalReg(mcir.RegClassFloat, 1) // XMM1, distinct from cc.FloatReturn (XMM0)
	abi.LowerCall(e, cc, nil, ret, retDst, abi.CallTarget{DirectSymbol: mcir.IdentRef(7), IsDirect: true})

	require.Equal(t, []string{"binop", "call-local", "reg<-reg", "binop"}, e.ops)
}

func TestLowerCall_PanicsOnMalformedTarget(t *testing.T) {
	cc := abi.Get(abi.CallConvSystemV)
	e := &recordingEmitter{}
	r := require.CapturePanic(func() {
		abi.LowerCall(e, cc, nil, abi.NormalizedABIType{IsVoid: true}, mcir.MicroReg(0), abi.CallTarget{})
	})
	require.NotNil(t, r)
}
