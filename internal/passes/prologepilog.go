package passes

import (
	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
)

// PrologEpilog materializes the function's real entry/exit sequence
// now that RegAlloc has populated Context.ClobberedInt,
// Context.ClobberedFloat and Context.SpillAreaSize: push the
// callee-saved registers the function actually clobbers, establish a
// frame pointer when PreservePersistentRegs asks for one, reserve locals
// and spill slots with a single stack-pointer adjustment, and mirror
// that exactly before every return, generalized to a front-end-agnostic
// frame shape rather than one fixed module format. Entry code always
// goes in at the top of the function and exit code before every Ret,
// regardless of whether the front end marked the boundaries with
// OpEnter/OpLeave: those are advisory (a frame-size hint, and an early
// exit marker for a Ret that isn't the function's fall-through end) and
// never gate whether a frame is established, since insertSpillCode
// (spill.go) addresses every spill slot off the frame pointer
// unconditionally.
func PrologEpilog(ctx *Context) error {
	b := ctx.Builder
	s := ctx.storage()
	cc := abi.Get(ctx.CallConvKind)

	floatBase := alignUp(ctx.SpillAreaSize, 16)
	frameSize := alignUp(floatBase+calleeSavedFloatBytes(ctx, cc), cc.StackAlignment)

	// A function that makes calls must leave the stack pointer where
	// call lowering's own stack-adjust rounding expects it: the total
	// descent from function entry (pushes plus the sub below) has to be
	// a multiple of the convention's alignment, so the push count's
	// parity may cost one extra slot. Leaf functions skip this; nothing
	// downstream observes their alignment.
	pushBytes := int64(len(ctx.ClobberedInt)) * 8
	if ctx.PreservePersistentRegs {
		pushBytes += 8
	}
	if hasCall(s, ctx.Order) {
		if rem := (pushBytes + frameSize) % cc.StackAlignment; rem != 0 {
			frameSize += cc.StackAlignment - rem
		}
	}

	newOrder := make([]mcir.Ref, 0, len(ctx.Order)+8)
	newOrder = append(newOrder, emitPrologue(b, ctx, cc, frameSize)...)
	for _, ref := range ctx.Order {
		in := s.Instr(ref)
		switch in.Opcode {
		case mcir.OpRet:
			// OpLeave is a purely advisory marker; only a Ret gets the
			// exit sequence spliced in ahead of it, whether or not the
			// front end marked it.
			newOrder = append(newOrder, emitEpilogue(b, ctx, cc, frameSize)...)
			newOrder = append(newOrder, ref)
		default:
			newOrder = append(newOrder, ref)
		}
	}
	ctx.Order = newOrder
	return nil
}

func hasCall(s *mcir.Storage, order []mcir.Ref) bool {
	for _, ref := range order {
		if s.Instr(ref).Opcode.IsCall() {
			return true
		}
	}
	return false
}

func calleeSavedFloatBytes(ctx *Context, cc *abi.CallConv) int64 {
	return int64(len(ctx.ClobberedFloat)) * 16
}

// emitPrologue orders the entry sequence push-then-reserve: callee-saved
// integer registers go on the stack via push (moving the stack pointer
// one slot at a time, as real call-site unwinders expect), then a single
// sub reserves the rest of the frame. Within that reserved area, spill
// slots occupy the top (addressed off the frame pointer, below the
// pushed registers — see insertSpillCode) and the callee-saved XMM
// registers, which have no push/pop form, are saved with ordinary
// stores at the bottom, directly above the final stack pointer. The two
// regions can't collide: the sub always reserves at least
// spill-area + float-area bytes.
func emitPrologue(b *builder.Builder, ctx *Context, cc *abi.CallConv, frameSize int64) []mcir.Ref {
	var out []mcir.Ref
	if ctx.PreservePersistentRegs {
		out = append(out, b.EncodePush(cc.FramePointer))
		out = append(out, b.EncodeLoadRegReg(cc.FramePointer, cc.StackPointer, mcir.OpBits64))
	}
	for _, r := range ctx.ClobberedInt {
		out = append(out, b.EncodePush(r))
	}
	if frameSize > 0 {
		out = append(out, b.EncodeBinaryRegImm(mcir.MicroOpSub, cc.StackPointer, frameSize, mcir.OpBits64))
	}
	for i, r := range ctx.ClobberedFloat {
		out = append(out, b.EncodeLoadMemReg(cc.StackPointer, int32(int64(i)*16), r, mcir.OpBits128))
	}
	return out
}

func emitEpilogue(b *builder.Builder, ctx *Context, cc *abi.CallConv, frameSize int64) []mcir.Ref {
	var out []mcir.Ref
	for i := len(ctx.ClobberedFloat) - 1; i >= 0; i-- {
		out = append(out, b.EncodeLoadRegMem(ctx.ClobberedFloat[i], cc.StackPointer, int32(int64(i)*16), mcir.OpBits128))
	}
	if frameSize > 0 {
		out = append(out, b.EncodeBinaryRegImm(mcir.MicroOpAdd, cc.StackPointer, frameSize, mcir.OpBits64))
	}
	for i := len(ctx.ClobberedInt) - 1; i >= 0; i-- {
		out = append(out, b.EncodePop(ctx.ClobberedInt[i]))
	}
	if ctx.PreservePersistentRegs {
		out = append(out, b.EncodePop(cc.FramePointer))
	}
	return out
}
