package abi

import "github.com/microlower/mcbackend/internal/mcir"

// PreparedArg is one already-evaluated outgoing argument: the front-end
// has already computed its value into srcReg (or, for an indirect
// argument, srcReg holds the address of the value to copy from).
type PreparedArg struct {
	Type NormalizedABIType
	// Reg holds the argument's value (scalar/interface-obj case) or its
	// source address (indirect case).
	Reg mcir.MicroReg
	// Reg2 holds the second eightbyte's value when Type.Slots has two
	// entries.
	Reg2 mcir.MicroReg
}

// CallTarget is exactly one of the three ways to reach the callee.
type CallTarget struct {
	DirectSymbol  mcir.IdentRef
	IsDirect      bool
	IndirectReg   mcir.MicroReg
	IsIndirectReg bool
}

// Emitter is the narrow slice of the micro-instruction builder that
// ABI call lowering needs. Kept as an interface here so package abi does
// not import package builder (which in turn depends on abi for
// NormalizedABIType), avoiding an import cycle. Every method returns the
// appended instruction's Ref, as the builder's own methods do; call
// lowering itself never retains them.
type Emitter interface {
	EncodeBinaryRegImm(op mcir.MicroOp, dst mcir.MicroReg, imm int64, bits mcir.OpBits) mcir.Ref
	EncodeLoadRegReg(dst, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref
	EncodeLoadRegImm(dst mcir.MicroReg, imm uint64, bits mcir.OpBits) mcir.Ref
	EncodeLoadRegMem(dst mcir.MicroReg, base mcir.MicroReg, offset int32, bits mcir.OpBits) mcir.Ref
	EncodeLoadMemReg(base mcir.MicroReg, offset int32, src mcir.MicroReg, bits mcir.OpBits) mcir.Ref
	EncodeCallLocal(sym mcir.IdentRef, cc CallConvKind) mcir.Ref
	EncodeCallExtern(sym mcir.IdentRef, cc CallConvKind) mcir.Ref
	EncodeCallIndirect(reg mcir.MicroReg, cc CallConvKind) mcir.Ref
}

// LowerCall classifies the call target, emits the micro-instructions
// that place arguments into the convention's slots, calls, and
// retrieves the return value.
//
// retDst, if Valid, receives the scalar/float return value; it is
// ignored when ret.IsIndirect (the callee already wrote through the
// hidden pointer the caller supplied as an extra leading argument) or
// ret.IsVoid.
func LowerCall(e Emitter, cc *CallConv, args []PreparedArg, ret NormalizedABIType, retDst mcir.MicroReg, target CallTarget) {
	// An indirect return's hidden pointer occupies
	// implicit argument slot 0, ahead of the declared arguments.
	allArgs := args
	if ret.IsIndirect {
		hidden := PreparedArg{Type: NormalizedABIType{NumBits: 64, Kind: ArgKindScalar}, Reg: retDst}
		allArgs = append([]PreparedArg{hidden}, args...)
	}

	// Slot accounting: almost every argument occupies one positional
	// slot, but a small scalar-leaf aggregate occupies one per recorded
	// eightbyte.
	numArgRegs := cc.NumArgRegisterSlots()
	totalSlots := 0
	for _, a := range allArgs {
		totalSlots += slotCount(a.Type)
	}
	stackSlots := 0
	if totalSlots > numArgRegs {
		stackSlots = totalSlots - numArgRegs
	}

	// Step 1: stackAdjust, rounded to the convention's alignment,
	// accounting for the implicit 8-byte return-address push the `call`
	// instruction itself performs.
	stackAdjust := cc.StackShadowSpace + int64(stackSlots)*cc.StackSlotSize
	stackAdjust = alignCallFrame(stackAdjust, cc.StackAlignment)

	if stackAdjust > 0 {
		e.EncodeBinaryRegImm(mcir.MicroOpSub, cc.StackPointer, stackAdjust, mcir.OpBits64)
	}

	slot := 0
	for _, arg := range allArgs {
		slot = placeArg(e, cc, slot, numArgRegs, arg)
	}

	switch {
	case target.IsDirect:
		e.EncodeCallLocal(target.DirectSymbol, cc.Kind)
	case target.IsIndirectReg:
		e.EncodeCallIndirect(target.IndirectReg, cc.Kind)
	default:
		panic("BUG: CallTarget names neither a direct symbol nor an indirect register")
	}

	if !ret.IsVoid && !ret.IsIndirect && retDst.Valid() {
		src := cc.IntReturn
		if ret.IsFloat {
			src = cc.FloatReturn
		}
		if src != retDst {
			e.EncodeLoadRegReg(retDst, src, bitsOf(ret))
		}
	}

	if stackAdjust > 0 {
		e.EncodeBinaryRegImm(mcir.MicroOpAdd, cc.StackPointer, stackAdjust, mcir.OpBits64)
	}
}

func bitsOf(t NormalizedABIType) mcir.OpBits { return bitsOfNum(t.NumBits) }

func bitsOfNum(n int) mcir.OpBits {
	switch n {
	case 8:
		return mcir.OpBits8
	case 16:
		return mcir.OpBits16
	case 32:
		return mcir.OpBits32
	default:
		return mcir.OpBits64
	}
}

// slotCount reports how many positional argument slots t occupies: one,
// except for a small scalar-leaf aggregate, which takes one per
// recorded eightbyte.
func slotCount(t NormalizedABIType) int {
	if n := len(t.Slots); n > 0 {
		return n
	}
	return 1
}

// alignCallFrame rounds stackAdjust up so that RSP is aligned to
// `alignment` at the call instruction, given the callee sees RSP
// misaligned by exactly one return-address push (8 bytes) relative to
// the caller's own aligned frame.
func alignCallFrame(stackAdjust, alignment int64) int64 {
	total := stackAdjust + 8 // return-address push performed by `call`.
	rem := total % alignment
	if rem != 0 {
		stackAdjust += alignment - rem
	}
	return stackAdjust
}

// placeArg places one prepared argument starting at positional slot
// `slot` and returns the next free slot. A small scalar-leaf aggregate
// places each recorded eightbyte into its own consecutive slot (Reg
// then Reg2, each honoring its leaf's class and width); everything else
// takes exactly one.
func placeArg(e Emitter, cc *CallConv, slot, numArgRegs int, arg PreparedArg) int {
	src := arg.Reg
	if arg.Type.Kind == ArgKindInterfaceObject {
		// Dereference the source register at
		// offsetof(Interface.obj) before placement; the type descriptor
		// half is never forwarded.
		tmp := src // the front-end guarantees src is scratch-safe here.
		e.EncodeLoadRegMem(tmp, src, InterfaceObjOffset, mcir.OpBits64)
		src = tmp
	}

	if len(arg.Type.Slots) > 0 {
		srcs := [2]mcir.MicroReg{arg.Reg, arg.Reg2}
		for j, leaf := range arg.Type.Slots {
			placeSlot(e, cc, slot, numArgRegs, srcs[j], leaf.IsFloat, bitsOfNum(leaf.NumBits))
			slot++
		}
		return slot
	}

	placeSlot(e, cc, slot, numArgRegs, src, arg.Type.IsFloat, bitsOf(arg.Type))
	return slot + 1
}

// placeSlot moves one eightbyte-or-smaller value into positional slot
// `slot`: an argument register while the budget lasts (floats and
// integers share the positional index budget), the outgoing stack area
// above the shadow space afterward. An aggregate whose slots straddle
// the budget simply splits: first eightbyte in the last register, the
// rest on the stack.
func placeSlot(e Emitter, cc *CallConv, slot, numArgRegs int, src mcir.MicroReg, isFloat bool, bits mcir.OpBits) {
	if slot < numArgRegs {
		if isFloat {
			e.EncodeLoadRegReg(cc.FloatArgRegs[slot], src, bits)
		} else {
			e.EncodeLoadRegReg(cc.IntArgRegs[slot], src, bits)
		}
		return
	}

	stackIdx := int64(slot - numArgRegs)
	offset := int32(cc.StackShadowSpace + stackIdx*cc.StackSlotSize)
	e.EncodeLoadMemReg(cc.StackPointer, offset, src, bits)
}
