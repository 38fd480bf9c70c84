package passes

import (
	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/x64"
)

// insertSpillCode rewrites every reference to a register RegAlloc could
// not keep live in a physical register into a reload-before/store-after
// sequence through one of the reserved scratch registers: uses reloaded
// before, defs spilled after. It replaces ctx.Order with the expanded
// sequence; the underlying arena only grows (new EncodeLoadRegMem/
// EncodeLoadMemReg instructions appended at the end), it never needs
// in-place reordering (see Context.Order's doc comment).
func insertSpillCode(ctx *Context, ud []UseDef, assignment map[mcir.MicroReg]mcir.MicroReg, spillSlot map[mcir.MicroReg]int64) {
	s := ctx.storage()
	b := ctx.Builder
	cc := abi.Get(ctx.CallConvKind)
	order := ctx.Order

	isSpilled := func(r mcir.MicroReg) (int64, bool) {
		if r.IsPhysical() {
			return 0, false
		}
		off, ok := spillSlot[r]
		return off, ok
	}
	// Slot 0 sits directly below the callee-saved integer pushes, which
	// in turn sit below the saved frame pointer; all of it is addressed
	// off the frame pointer so the call-site stack adjusts around the
	// function body never shift a slot's address.
	intSaveBytes := int64(len(ctx.ClobberedInt)) * 8
	spillAddr := func(off int64) (mcir.MicroReg, int32) {
		return cc.FramePointer, -int32(intSaveBytes + off + cc.StackSlotSize)
	}

	newOrder := make([]mcir.Ref, 0, len(order))
	for i, ref := range order {
		in := s.Instr(ref)

		intScratch := [2]mcir.MicroReg{x64.PhysReg(spillScratchInt1).VReg(), x64.PhysReg(spillScratchInt2).VReg()}
		floatScratch := [2]mcir.MicroReg{x64.PhysReg(spillScratchFloat1).VReg(), x64.PhysReg(spillScratchFloat2).VReg()}
		nextInt, nextFloat := 0, 0
		substitution := map[mcir.MicroReg]mcir.MicroReg{}

		for _, u := range ud[i].Uses {
			off, ok := isSpilled(u)
			if !ok {
				continue
			}
			if _, already := substitution[u]; already {
				continue
			}
			var scratch mcir.MicroReg
			if u.Class() == mcir.RegClassFloat {
				scratch = floatScratch[nextFloat%len(floatScratch)]
				nextFloat++
			} else {
				scratch = intScratch[nextInt%len(intScratch)]
				nextInt++
			}
			base, disp := spillAddr(off)
			newOrder = append(newOrder, b.EncodeLoadRegMem(scratch, base, disp, mcir.OpBits64))
			substitution[u] = scratch
			replaceRegInInstr(s, in, u, scratch)
		}

		newOrder = append(newOrder, ref)

		for _, d := range ud[i].Defs {
			off, ok := isSpilled(d)
			if !ok {
				continue
			}
			scratch, already := substitution[d]
			if !already {
				if d.Class() == mcir.RegClassFloat {
					scratch = floatScratch[0]
				} else {
					scratch = intScratch[0]
				}
			}
			replaceRegInInstr(s, in, d, scratch)
			base, disp := spillAddr(off)
			newOrder = append(newOrder, b.EncodeLoadMemReg(base, disp, scratch, mcir.OpBits64))
		}
	}
	ctx.Order = newOrder
}

// replaceRegInInstr rewrites every operand of in equal to from (directly,
// or as an Amc base/index) to to.
func replaceRegInInstr(s *mcir.Storage, in *mcir.Instr, from, to mcir.MicroReg) {
	for i := 0; i < int(in.NumOps); i++ {
		op := s.Operand(in.Operands, i)
		switch op.Kind {
		case mcir.OperandKindReg:
			if op.Reg == from {
				op.Reg = to
			}
		case mcir.OperandKindAmc:
			if op.Amc.Base == from {
				op.Amc.Base = to
			}
			if op.Amc.HasIndex && op.Amc.Index == from {
				op.Amc.Index = to
			}
		}
	}
}
