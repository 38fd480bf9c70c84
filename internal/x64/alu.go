package x64

import (
	"fmt"

	"github.com/microlower/mcbackend/internal/mcir"
)

// group1Subop is the ModRM.reg field selecting an ALU operation for the
// 0x81/0x83 (reg-imm) encoding family.
func group1Subop(op mcir.MicroOp) (byte, bool) {
	switch op {
	case mcir.MicroOpAdd:
		return 0, true
	case mcir.MicroOpOr:
		return 1, true
	case mcir.MicroOpAnd:
		return 4, true
	case mcir.MicroOpSub:
		return 5, true
	case mcir.MicroOpXor:
		return 6, true
	default:
		return 0, false
	}
}

// group1RegOpcode is the 0x01-style opcode for the reg-reg (dst op= src)
// encoding family: regField=src, rmField=dst.
func group1RegOpcode(op mcir.MicroOp) (byte, bool) {
	switch op {
	case mcir.MicroOpAdd:
		return 0x01, true
	case mcir.MicroOpOr:
		return 0x09, true
	case mcir.MicroOpAnd:
		return 0x21, true
	case mcir.MicroOpSub:
		return 0x29, true
	case mcir.MicroOpXor:
		return 0x31, true
	default:
		return 0, false
	}
}

// EncodeBinaryRegReg emits dst := dst op src for add/sub/and/or/xor, and
// the 0F AF two-operand imul form for mul (shifts never reach this
// entry point; their amount is always an immediate per EncodeBinaryRegImm).
func (e *Encoder) EncodeBinaryRegReg(op mcir.MicroOp, dst, src mcir.MicroReg, bits mcir.OpBits) {
	d, s := physOf(dst), physOf(src)
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	if opc, ok := group1RegOpcode(op); ok {
		e.encodeRegReg([]byte{opc}, rexFor(bits, false, 0), s, d)
		return
	}
	switch op {
	case mcir.MicroOpMulS, mcir.MicroOpMulU:
		e.encodeRegReg([]byte{0x0F, 0xAF}, rexFor(bits, false, 0), d, s)
	default:
		panic(fmt.Sprintf("BUG: EncodeBinaryRegReg given non-reg-reg op %s", op))
	}
}

// EncodeBinaryRegImm emits dst := dst op imm. Shift ops use the group-2
// 0xC1 /sub encoding whose immediate is always one byte, regardless of
// operand width; every other op uses group-1 0x81/0x83 with an
// optionally disp8-shortened immediate.
func (e *Encoder) EncodeBinaryRegImm(op mcir.MicroOp, dst mcir.MicroReg, imm int32, bits mcir.OpBits) {
	d := physOf(dst)
	if bits == mcir.OpBits16 && !isShift(op) {
		e.emitByte(0x66)
	}
	if isShift(op) {
		sub, _ := shiftSubop(op)
		e.emitRex(rexFor(bits, false, d), 0, d)
		e.emitByte(0xC1)
		e.emitByte(modRM(modReg, sub, d.LowBits()))
		amt := imm
		if max := int32(bits) - 1; amt > max {
			amt = max
		}
		e.emitByte(byte(amt))
		return
	}
	sub, ok := group1Subop(op)
	if !ok {
		panic(fmt.Sprintf("BUG: EncodeBinaryRegImm given unsupported op %s", op))
	}
	if fitsInt8(imm) {
		e.emitRex(rexFor(bits, false, d), 0, d)
		e.emitByte(0x83)
		e.emitByte(modRM(modReg, sub, d.LowBits()))
		e.emitByte(byte(imm))
		return
	}
	e.emitRex(rexFor(bits, false, d), 0, d)
	e.emitByte(0x81)
	e.emitByte(modRM(modReg, sub, d.LowBits()))
	switch bits {
	case mcir.OpBits16:
		e.emit2Bytes(uint16(imm))
	default:
		e.emit4Bytes(uint32(imm))
	}
}

func isShift(op mcir.MicroOp) bool {
	return op == mcir.MicroOpShl || op == mcir.MicroOpShr || op == mcir.MicroOpSar
}

func shiftSubop(op mcir.MicroOp) (byte, bool) {
	switch op {
	case mcir.MicroOpShl:
		return 4, true
	case mcir.MicroOpShr:
		return 5, true
	case mcir.MicroOpSar:
		return 7, true
	default:
		return 0, false
	}
}

// EncodeUnary emits dst := op(dst) for neg/not (group-3 0xF7 /3, /2).
// The division family is not handled here; it goes through
// EncodeDivMod.
func (e *Encoder) EncodeUnary(op mcir.MicroOp, dst mcir.MicroReg, bits mcir.OpBits) {
	d := physOf(dst)
	switch op {
	case mcir.MicroOpNeg:
		e.emitRex(rexFor(bits, false, d), 0, d)
		e.emitByte(0xF7)
		e.emitByte(modRM(modReg, 3, d.LowBits()))
	case mcir.MicroOpNot:
		e.emitRex(rexFor(bits, false, d), 0, d)
		e.emitByte(0xF7)
		e.emitByte(modRM(modReg, 2, d.LowBits()))
	default:
		panic(fmt.Sprintf("BUG: EncodeUnary given unsupported op %s", op))
	}
}

// EncodeDivMod emits the implicit-operand div/mod sequence: move the
// dividend into RAX, sign- or zero-extend it into RDX:RAX (cqo/xor
// edx,edx), divide by src, then move the quotient (div) or remainder
// (mod) into dst. RAX/RDX are clobbered regardless of which registers
// the allocator gave dst/src; this sequence evacuates the divisor to a
// reserved scratch register first when it collides with either. This is
// the one place a single micro-instruction lowers to more than a couple
// of machine instructions.
func (e *Encoder) EncodeDivMod(op mcir.MicroOp, dst, src mcir.MicroReg, bits mcir.OpBits) {
	d, s := physOf(dst), physOf(src)
	signed := op == mcir.MicroOpDivS || op == mcir.MicroOpModS

	// The divisor must not itself be RAX or RDX by the time they're
	// clobbered below; R11 is never handed out by the register allocator
	// (reserved as a spill scratch), so it is always safe to park the
	// divisor there first.
	divisor := s
	if s == RAX || s == RDX {
		e.EncodeLoadRegReg(R11.VReg(), s.VReg(), bits)
		divisor = R11
	}
	if d != RAX {
		e.EncodeLoadRegReg(RAX.VReg(), d.VReg(), bits)
	}

	if signed {
		// cqo/cdq/cwd: sign-extend RAX into RDX:RAX.
		if bits == mcir.OpBits64 {
			e.emitByte(0x48)
		} else if bits == mcir.OpBits16 {
			e.emitByte(0x66)
		}
		e.emitByte(0x99)
	} else {
		// xor edx, edx.
		e.emitByte(0x31)
		e.emitByte(modRM(modReg, RDX.LowBits(), RDX.LowBits()))
	}
	e.emitRex(rexFor(bits, false, divisor), 0, divisor)
	e.emitByte(0xF7)
	subop := byte(6) // unsigned div
	if signed {
		subop = 7 // idiv
	}
	e.emitByte(modRM(modReg, subop, divisor.LowBits()))

	want := RAX
	if op == mcir.MicroOpModS || op == mcir.MicroOpModU {
		want = RDX
	}
	if d != want {
		e.EncodeLoadRegReg(d.VReg(), want.VReg(), bits)
	}
}

// --- compares ---------------------------------------------------------

// EncodeCmpRegReg emits a compare of a against c (a - c, flags only).
func (e *Encoder) EncodeCmpRegReg(a, c mcir.MicroReg, bits mcir.OpBits) {
	ra, rc := physOf(a), physOf(c)
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	e.encodeRegReg([]byte{0x39}, rexFor(bits, false, 0), rc, ra)
}

// EncodeCmpRegImm emits a compare of a against imm.
func (e *Encoder) EncodeCmpRegImm(a mcir.MicroReg, imm int64, bits mcir.OpBits) {
	ra := physOf(a)
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	if fitsInt8(int32(imm)) {
		e.emitRex(rexFor(bits, false, ra), 0, ra)
		e.emitByte(0x83)
		e.emitByte(modRM(modReg, 7, ra.LowBits()))
		e.emitByte(byte(imm))
		return
	}
	e.emitRex(rexFor(bits, false, ra), 0, ra)
	e.emitByte(0x81)
	e.emitByte(modRM(modReg, 7, ra.LowBits()))
	e.emit4Bytes(uint32(imm))
}

// EncodeCmpRegZero emits a compare of a against zero (test a,a — sets ZF
// identically to cmp a,0 and is the idiomatic x86-64 encoding, one byte
// shorter).
func (e *Encoder) EncodeCmpRegZero(a mcir.MicroReg, bits mcir.OpBits) {
	ra := physOf(a)
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	opc := byte(0x85)
	if bits == mcir.OpBits8 {
		opc = 0x84
	}
	e.encodeRegReg([]byte{opc}, rexFor(bits, bits == mcir.OpBits8, ra), ra, ra)
}

// EncodeCmpMemReg emits a compare of [amc] against src.
func (e *Encoder) EncodeCmpMemReg(amc mcir.Amc, src mcir.MicroReg, bits mcir.OpBits) {
	s := physOf(src)
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	e.encodeRegMem([]byte{0x39}, rexFor(bits, false, s), s, amc)
}

// EncodeCmpMemImm emits a compare of [amc] against imm.
func (e *Encoder) EncodeCmpMemImm(amc mcir.Amc, imm int64, bits mcir.OpBits) {
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	e.encodeRegMem([]byte{0x81}, rexFor(bits, false, 0), PhysReg(7), amc)
	e.emit4Bytes(uint32(imm))
}

// --- condition-code materialization -------------------------------------

var ccCode = [...]byte{
	mcir.CondEqual:                0x4,
	mcir.CondNotEqual:             0x5,
	mcir.CondSignedLess:           0xC,
	mcir.CondSignedLessEqual:      0xE,
	mcir.CondSignedGreater:        0xF,
	mcir.CondSignedGreaterEqual:   0xD,
	mcir.CondUnsignedLess:         0x2,
	mcir.CondUnsignedLessEqual:    0x6,
	mcir.CondUnsignedGreater:      0x7,
	mcir.CondUnsignedGreaterEqual: 0x3,
	mcir.CondOverflow:             0x0,
	mcir.CondNoOverflow:           0x1,
	mcir.CondSign:                 0x8,
	mcir.CondNoSign:               0x9,
}

// EncodeSetCondReg materializes cond as a 0/1 byte in dst (0F 90+cc /r).
func (e *Encoder) EncodeSetCondReg(cond mcir.Condition, dst mcir.MicroReg) {
	d := physOf(dst)
	e.encodeRegReg([]byte{0x0F, 0x90 | ccCode[cond]}, rexFor(mcir.OpBits8, true, d), 0, d)
}

// EncodeLoadCondRegReg emits a conditional move (0F 40+cc /r): dst <-
// src when cond holds, dst unchanged otherwise.
func (e *Encoder) EncodeLoadCondRegReg(cond mcir.Condition, dst, src mcir.MicroReg) {
	d, s := physOf(dst), physOf(src)
	e.encodeRegReg([]byte{0x0F, 0x40 | ccCode[cond]}, rexFor(mcir.OpBits64, false, 0), d, s)
}
