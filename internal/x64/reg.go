// Package x64 is the x86-64 encoder: REX/ModRM/SIB emission, jump
// patching, relocation recording, and a capability-set Encoder type a
// second target architecture could be added beside later.
package x64

import "github.com/microlower/mcbackend/internal/mcir"

// PhysReg is a physical x86-64 register index: general-purpose
// registers first, then XMM.
type PhysReg uint8

const (
	RAX PhysReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// IsExtended reports whether encoding a reference to r requires the REX.
// {R,X,B} extension bit (registers R8-R15, XMM8-XMM15).
func (r PhysReg) IsExtended() bool {
	return (r >= R8 && r <= R15) || (r >= XMM8 && r <= XMM15)
}

// LowBits returns the 3-bit ModRM/SIB/opcode-reg field encoding of r,
// independent of the REX extension bit.
func (r PhysReg) LowBits() byte {
	if r >= XMM0 {
		return byte(r-XMM0) & 0x7
	}
	return byte(r) & 0x7
}

func (r PhysReg) class() mcir.RegClass {
	if r >= XMM0 {
		return mcir.RegClassFloat
	}
	return mcir.RegClassInt
}

// VReg returns the MicroReg naming this physical register. Float
// registers pack a 0-based XMM index, matching what physOf and
// FormatVReg decode. The uint8 conversions cannot truncate: PhysReg's
// enumeration tops out at XMM15 (31), and the float arm subtracts XMM0
// first.
func (r PhysReg) VReg() mcir.MicroReg {
	if r >= XMM0 {
		return mcir.NewPhysicalReg(mcir.RegClassFloat, uint8(r-XMM0))
	}
	return mcir.NewPhysicalReg(mcir.RegClassInt, uint8(r))
}

var regNames64 = [...]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx", RSP: "rsp", RBP: "rbp", RSI: "rsi", RDI: "rdi",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11", R12: "r12", R13: "r13", R14: "r14", R15: "r15",
	XMM0: "xmm0", XMM1: "xmm1", XMM2: "xmm2", XMM3: "xmm3", XMM4: "xmm4", XMM5: "xmm5", XMM6: "xmm6", XMM7: "xmm7",
	XMM8: "xmm8", XMM9: "xmm9", XMM10: "xmm10", XMM11: "xmm11", XMM12: "xmm12", XMM13: "xmm13", XMM14: "xmm14", XMM15: "xmm15",
}

var regNames32 = [...]string{
	RAX: "eax", RCX: "ecx", RDX: "edx", RBX: "ebx", RSP: "esp", RBP: "ebp", RSI: "esi", RDI: "edi",
	R8: "r8d", R9: "r9d", R10: "r10d", R11: "r11d", R12: "r12d", R13: "r13d", R14: "r14d", R15: "r15d",
}

// FormatRegisterName implements the debug-printing-only contract:
// XMM registers are always printed the same regardless of width.
func FormatRegisterName(r PhysReg, _64 bool) string {
	if r >= XMM0 {
		return "%" + regNames64[r]
	}
	if _64 {
		return "%" + regNames64[r]
	}
	return "%" + regNames32[r]
}

// FormatVReg formats a MicroReg for debug listings, falling back to a
// "virtual, unassigned" form when it does not (yet) name a physical
// register.
func FormatVReg(v mcir.MicroReg, _64 bool) string {
	if !v.IsPhysical() {
		return v.String()
	}
	switch v.Class() {
	case mcir.RegClassInt:
		if v.Index() <= uint32(R15) {
			return FormatRegisterName(PhysReg(v.Index()), _64)
		}
	case mcir.RegClassFloat:
		if v.Index() <= uint32(XMM15-XMM0) {
			return FormatRegisterName(PhysReg(uint32(XMM0)+v.Index()), _64)
		}
	}
	return v.String() + "?"
}
