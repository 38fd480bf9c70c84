package abi

import (
	"runtime"

	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/x64"
)

func vreg(r x64.PhysReg) mcir.MicroReg { return r.VReg() }

func vregs(rs ...x64.PhysReg) []mcir.MicroReg {
	out := make([]mcir.MicroReg, len(rs))
	for i, r := range rs {
		out[i] = vreg(r)
	}
	return out
}

var hostCallConvKind = func() CallConvKind {
	if runtime.GOOS == "windows" {
		return CallConvWindows
	}
	return CallConvSystemV
}()

func init() {
	register(&CallConv{
		Kind:         CallConvSystemV,
		IntArgRegs:   vregs(x64.RDI, x64.RSI, x64.RDX, x64.RCX, x64.R8, x64.R9),
		FloatArgRegs: vregs(x64.XMM0, x64.XMM1, x64.XMM2, x64.XMM3, x64.XMM4, x64.XMM5, x64.XMM6, x64.XMM7),
		IntReturn:    vreg(x64.RAX),
		FloatReturn:  vreg(x64.XMM0),
		StackPointer: vreg(x64.RSP),
		FramePointer: vreg(x64.RBP),
		// System V has no shadow space: the callee may use the red zone
		// below RSP instead, which this backend does not rely on.
		StackShadowSpace: 0,
		StackAlignment:   16,
		StackSlotSize:    8,
		CalleeSavedInt:   vregs(x64.RBX, x64.R12, x64.R13, x64.R14, x64.R15, x64.RBP),
		CalleeSavedFloat: nil,
		ScratchInt:       vregs(x64.R10, x64.R11),
	})

	register(&CallConv{
		Kind:         CallConvWindows,
		IntArgRegs:   vregs(x64.RCX, x64.RDX, x64.R8, x64.R9),
		FloatArgRegs: vregs(x64.XMM0, x64.XMM1, x64.XMM2, x64.XMM3),
		IntReturn:    vreg(x64.RAX),
		FloatReturn:  vreg(x64.XMM0),
		StackPointer: vreg(x64.RSP),
		FramePointer: vreg(x64.RBP),
		// Windows x64 always reserves 32 bytes of shadow space for the
		// callee to spill its register arguments into, even when the
		// callee never does so.
		StackShadowSpace: 32,
		StackAlignment:   16,
		StackSlotSize:    8,
		CalleeSavedInt:   vregs(x64.RBX, x64.RBP, x64.RDI, x64.RSI, x64.R12, x64.R13, x64.R14, x64.R15),
		CalleeSavedFloat: vregs(x64.XMM6, x64.XMM7, x64.XMM8, x64.XMM9, x64.XMM10, x64.XMM11, x64.XMM12, x64.XMM13, x64.XMM14, x64.XMM15),
		ScratchInt:       vregs(x64.R10, x64.R11),
	})
}
