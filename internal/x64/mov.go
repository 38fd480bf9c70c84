package x64

import "github.com/microlower/mcbackend/internal/mcir"

// sseScalarPrefix returns the mandatory prefix byte selecting movss
// (0xF3, 32-bit scalar) or movsd (0xF2, 64-bit scalar) semantics for the
// 0F10/0F11 opcode pair; a 128-bit access uses no prefix (movups).
func sseScalarPrefix(bits mcir.OpBits) (byte, bool) {
	switch bits {
	case mcir.OpBits32:
		return 0xF3, true
	case mcir.OpBits64:
		return 0xF2, true
	default:
		return 0, false
	}
}

// EncodeLoadRegReg emits dst <- src (mov r/m, r form, opcode 0x89/0x88).
// Both registers floating selects the SSE movss/movsd/movups family
// instead.
func (e *Encoder) EncodeLoadRegReg(dst, src mcir.MicroReg, bits mcir.OpBits) {
	if dst.Class() == mcir.RegClassFloat {
		d, s := physOf(dst), physOf(src)
		if p, ok := sseScalarPrefix(bits); ok {
			e.emitByte(p)
		}
		e.encodeRegReg([]byte{0x0F, 0x10}, 0, d, s)
		return
	}
	d, s := physOf(dst), physOf(src)
	if bits == mcir.OpBits8 {
		e.encodeRegReg([]byte{0x88}, rexFor(bits, true, d)|rexFor(bits, true, s), s, d)
		return
	}
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	e.encodeRegReg([]byte{0x89}, rexFor(bits, false, 0), s, d)
}

// EncodeLoadRegImm writes an immediate into reg. At 64 bits, an immediate
// that sign-extends from 32 bits uses the compact REX.W 0xC7 /0 imm32
// form and any other uses the full movabs form (REX.W, 0xB8+reg, imm64);
// 32-, 16- and 8-bit widths use the 0xB8+reg / 0xB0+reg mov-immediate
// form of that width. Returns the byte offset of the immediate field.
func (e *Encoder) EncodeLoadRegImm(reg mcir.MicroReg, imm uint64, bits mcir.OpBits) int {
	r := physOf(reg)
	switch bits {
	case mcir.OpBits64:
		if fitsInt32(int64(imm)) {
			e.emitRex(rexW, 0, r)
			e.emitByte(0xC7)
			e.emitByte(modRM(modReg, 0, r.LowBits()))
			off := e.CurrentOffset()
			e.emit4Bytes(uint32(imm))
			return off
		}
		e.emitRex(rexW, 0, r)
		e.emitByte(0xB8 | r.LowBits())
		off := e.CurrentOffset()
		e.emit8Bytes(imm)
		return off
	case mcir.OpBits16:
		e.emitByte(0x66)
		if r.IsExtended() {
			e.emitByte(0x41)
		}
		e.emitByte(0xB8 | r.LowBits())
		off := e.CurrentOffset()
		e.emit2Bytes(uint16(imm))
		return off
	case mcir.OpBits8:
		if needsByteRex(r) || r.IsExtended() {
			e.emitByte(0x40 | boolBit(r.IsExtended()))
		}
		e.emitByte(0xB0 | r.LowBits())
		off := e.CurrentOffset()
		e.emitByte(byte(imm))
		return off
	default: // OpBits32
		if r.IsExtended() {
			e.emitByte(0x41)
		}
		e.emitByte(0xB8 | r.LowBits())
		off := e.CurrentOffset()
		e.emit4Bytes(uint32(imm))
		return off
	}
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func fitsInt32(v int64) bool { return v >= -(1<<31) && v < (1<<31) }

// EncodeLoadRegMem emits dst <- [amc] (mov r, r/m).
func (e *Encoder) EncodeLoadRegMem(dst mcir.MicroReg, amc mcir.Amc, bits mcir.OpBits) {
	if dst.Class() == mcir.RegClassFloat {
		d := physOf(dst)
		if p, ok := sseScalarPrefix(bits); ok {
			e.emitByte(p)
		}
		e.encodeRegMem([]byte{0x0F, 0x10}, 0, d, amc)
		return
	}
	d := physOf(dst)
	opc := byte(0x8B)
	if bits == mcir.OpBits8 {
		opc = 0x8A
	}
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	e.encodeRegMem([]byte{opc}, rexFor(bits, bits == mcir.OpBits8, d), d, amc)
}

// EncodeLoadMemReg emits [amc] <- src (mov r/m, r).
func (e *Encoder) EncodeLoadMemReg(amc mcir.Amc, src mcir.MicroReg, bits mcir.OpBits) {
	if src.Class() == mcir.RegClassFloat {
		s := physOf(src)
		if p, ok := sseScalarPrefix(bits); ok {
			e.emitByte(p)
		}
		e.encodeRegMem([]byte{0x0F, 0x11}, 0, s, amc)
		return
	}
	s := physOf(src)
	opc := byte(0x89)
	if bits == mcir.OpBits8 {
		opc = 0x88
	}
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	e.encodeRegMem([]byte{opc}, rexFor(bits, bits == mcir.OpBits8, s), s, amc)
}

// EncodeLoadMemImm emits [amc] <- imm (mov r/m, imm32/imm8, subopcode 0).
func (e *Encoder) EncodeLoadMemImm(amc mcir.Amc, imm uint64, bits mcir.OpBits) {
	opc := byte(0xC7)
	if bits == mcir.OpBits8 {
		opc = 0xC6
	}
	if bits == mcir.OpBits16 {
		e.emitByte(0x66)
	}
	e.encodeRegMem([]byte{opc}, rexFor(bits, false, 0), PhysReg(0), amc)
	switch bits {
	case mcir.OpBits8:
		e.emitByte(byte(imm))
	case mcir.OpBits16:
		e.emit2Bytes(uint16(imm))
	default:
		e.emit4Bytes(uint32(imm))
	}
}

// EncodeLoadRegMemSext emits a sign-extending load (movsx/movsxd).
func (e *Encoder) EncodeLoadRegMemSext(dst mcir.MicroReg, amc mcir.Amc, srcBits, dstBits mcir.OpBits) {
	d := physOf(dst)
	if srcBits == mcir.OpBits32 {
		e.encodeRegMem([]byte{0x63}, rexFor(dstBits, false, d), d, amc) // movsxd
		return
	}
	opc := []byte{0x0F, 0xBE}
	if srcBits == mcir.OpBits16 {
		opc = []byte{0x0F, 0xBF}
	}
	e.encodeRegMem(opc, rexFor(dstBits, false, d), d, amc)
}

// EncodeLoadRegMemZext emits a zero-extending load (movzx; 32-bit dest
// loads need no explicit op since the CPU zero-extends to 64 bits on
// any 32-bit write).
func (e *Encoder) EncodeLoadRegMemZext(dst mcir.MicroReg, amc mcir.Amc, srcBits, dstBits mcir.OpBits) {
	d := physOf(dst)
	if srcBits == mcir.OpBits32 {
		e.encodeRegMem([]byte{0x8B}, rexFor(mcir.OpBits32, false, d), d, amc)
		return
	}
	opc := []byte{0x0F, 0xB6}
	if srcBits == mcir.OpBits16 {
		opc = []byte{0x0F, 0xB7}
	}
	e.encodeRegMem(opc, rexFor(dstBits, false, d), d, amc)
}

// EncodeLoadRegRegSext emits a sign-extending register move.
func (e *Encoder) EncodeLoadRegRegSext(dst, src mcir.MicroReg, srcBits, dstBits mcir.OpBits) {
	d, s := physOf(dst), physOf(src)
	if srcBits == mcir.OpBits32 {
		e.encodeRegReg([]byte{0x63}, rexFor(dstBits, false, d)|rexFor(dstBits, false, s), d, s)
		return
	}
	opc := []byte{0x0F, 0xBE}
	if srcBits == mcir.OpBits16 {
		opc = []byte{0x0F, 0xBF}
	}
	e.encodeRegReg(opc, rexFor(dstBits, true, s), d, s)
}

// EncodeLoadRegRegZext emits a zero-extending register move.
func (e *Encoder) EncodeLoadRegRegZext(dst, src mcir.MicroReg, srcBits, dstBits mcir.OpBits) {
	d, s := physOf(dst), physOf(src)
	if srcBits == mcir.OpBits32 {
		e.encodeRegReg([]byte{0x89}, rexFor(mcir.OpBits32, false, 0), s, d) // plain 32-bit mov auto-zero-extends.
		return
	}
	opc := []byte{0x0F, 0xB6}
	if srcBits == mcir.OpBits16 {
		opc = []byte{0x0F, 0xB7}
	}
	e.encodeRegReg(opc, rexFor(dstBits, true, s), d, s)
}

// EncodeLoadAddrRegMem emits dst <- &amc (lea).
func (e *Encoder) EncodeLoadAddrRegMem(dst mcir.MicroReg, amc mcir.Amc) {
	d := physOf(dst)
	e.encodeRegMem([]byte{0x8D}, rexFor(mcir.OpBits64, false, d), d, amc)
}

// EncodeLoadAmcRegMem emits dst <- [amc] (identical encoding to
// EncodeLoadRegMem; kept as a distinct method so emit.go's opcode
// dispatch reads one-to-one against mcir.Opcode without a shared case).
func (e *Encoder) EncodeLoadAmcRegMem(dst mcir.MicroReg, amc mcir.Amc, bits mcir.OpBits) {
	e.EncodeLoadRegMem(dst, amc, bits)
}

// EncodeLoadAmcMemReg emits [amc] <- src.
func (e *Encoder) EncodeLoadAmcMemReg(amc mcir.Amc, src mcir.MicroReg, bits mcir.OpBits) {
	e.EncodeLoadMemReg(amc, src, bits)
}

// EncodeLoadAmcMemImm emits [amc] <- imm.
func (e *Encoder) EncodeLoadAmcMemImm(amc mcir.Amc, imm uint64, bits mcir.OpBits) {
	e.EncodeLoadMemImm(amc, imm, bits)
}
