package x64

import (
	"encoding/binary"
	"fmt"

	"github.com/microlower/mcbackend/internal/mcir"
)

// rex is a bitset of pending REX requirements: bit 0 requests the W
// (64-bit operand) bit, bit 1 forces REX to be emitted even when every
// other bit would be zero (needed to address SIL/DIL/BPL/SPL as byte
// registers, which otherwise alias AH/CH/DH/BH).
type rex byte

const (
	rexW     rex = 1 << 0
	rexForce rex = 1 << 1
)

const (
	modNoDisp     = 0b00
	modDisp8      = 0b01
	modDisp32     = 0b10
	modReg        = 0b11
	sibNoIndex    = 0b100
	ripRelativeRM = 0b101
)

func modRM(mod, reg, rm byte) byte { return mod<<6 | (reg&7)<<3 | (rm & 7) }
func sib(scale, index, base byte) byte {
	shift := byte(0)
	switch scale {
	case 2:
		shift = 1
	case 4:
		shift = 2
	case 8:
		shift = 3
	}
	return shift<<6 | (index&7)<<3 | (base & 7)
}

// Encoder is the x86-64 encoder: a concrete capability set exposing one
// method per opcode family, rather than an interface-with-one-
// implementor; package passes' Context names it directly as
// (*x64.Encoder).
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder with an empty code buffer.
func NewEncoder() *Encoder { return &Encoder{} }

// CurrentOffset returns the byte offset the next emitted byte will land
// at.
func (e *Encoder) CurrentOffset() int { return len(e.buf) }

// Size returns the number of bytes emitted so far.
func (e *Encoder) Size() int { return len(e.buf) }

// Bytes exposes the encoder's buffer directly for read-only inspection
// (disassembly listings, golden-byte tests); CopyTo is the
// ownership-transferring accessor the emit pass uses.
func (e *Encoder) Bytes() []byte { return e.buf }

// CopyTo hands the emitted bytes to the caller as an owned copy.
func (e *Encoder) CopyTo() []byte {
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out
}

func (e *Encoder) emitByte(b byte) { e.buf = append(e.buf, b) }

func (e *Encoder) emit2Bytes(v uint16) {
	e.buf = append(e.buf, byte(v), byte(v>>8))
}

func (e *Encoder) emit4Bytes(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) emit8Bytes(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// --- REX/ModRM/SIB plumbing -------------------------------------------------

// needsByteRex reports whether accessing r as a byte register (OpBits8)
// requires a REX prefix purely to select SIL/DIL/BPL/SPL over the
// legacy AH/CH/DH/BH encodings that share the same 3-bit field.
func needsByteRex(r PhysReg) bool {
	return r == RSP || r == RBP || r == RSI || r == RDI
}

func (e *Encoder) emitRex(flags rex, regField, rmField PhysReg) {
	force := flags&rexForce != 0
	r := byte(0)
	if regField.IsExtended() {
		r = 1
	}
	b := byte(0)
	if rmField.IsExtended() {
		b = 1
	}
	w := byte(0)
	if flags&rexW != 0 {
		w = 1
	}
	prefix := byte(0x40) | w<<3 | r<<2 | b
	if prefix != 0x40 || force {
		e.emitByte(prefix)
	}
}

func (e *Encoder) emitRexIndexed(flags rex, regField, index, base PhysReg) {
	r := byte(0)
	if regField.IsExtended() {
		r = 1
	}
	x := byte(0)
	if index.IsExtended() {
		x = 1
	}
	b := byte(0)
	if base.IsExtended() {
		b = 1
	}
	w := byte(0)
	if flags&rexW != 0 {
		w = 1
	}
	prefix := byte(0x40) | w<<3 | r<<2 | x<<1 | b
	if prefix != 0x40 || flags&rexForce != 0 {
		e.emitByte(prefix)
	}
}

func rexFor(bits mcir.OpBits, byteReg bool, r PhysReg) rex {
	var f rex
	if bits == mcir.OpBits64 {
		f |= rexW
	}
	if byteReg && needsByteRex(r) {
		f |= rexForce
	}
	return f
}

// encodeRegReg emits a register-direct ModRM byte: mod=11, reg=regField,
// rm=rmField.
func (e *Encoder) encodeRegReg(opcodes []byte, flags rex, regField, rmField PhysReg) {
	e.emitRex(flags, regField, rmField)
	e.buf = append(e.buf, opcodes...)
	e.emitByte(modRM(modReg, regField.LowBits(), rmField.LowBits()))
}

// encodeRegMem emits opcode bytes followed by a ModRM (+SIB +disp)
// addressing mode.base+disp8/32, with the RSP/R12 "needs a SIB byte"
// special case and the RBP/R13 "mod=00 means RIP-relative, not
// no-displacement" special case.
func (e *Encoder) encodeRegMem(opcodes []byte, flags rex, regField PhysReg, amc mcir.Amc) {
	base := physOf(amc.Base)
	if amc.HasIndex {
		index := physOf(amc.Index)
		e.emitRexIndexed(flags, regField, index, base)
		e.buf = append(e.buf, opcodes...)
		e.emitSIBAddressed(regField, index, base, amc.Scale, amc.Disp)
		return
	}
	e.emitRex(flags, regField, base)
	e.buf = append(e.buf, opcodes...)
	e.emitBaseAddressed(regField, base, amc.Disp)
}

// emitBaseAddressed handles the base-only addressing form (no index
// register): RBP/R13 force a disp8 even when Disp==0 (mod=00,rm=101 is
// reserved for RIP-relative addressing on x86-64); RSP/R12 always need
// an explicit SIB byte because rm=100 in ModRM means "read a SIB byte"
// rather than naming RSP directly.
func (e *Encoder) emitBaseAddressed(regField, base PhysReg, disp int32) {
	rspOrR12 := base.LowBits() == 4
	baseNoDisp := base != RBP && base != R13
	switch {
	case disp == 0 && baseNoDisp:
		e.emitByte(modRM(modNoDisp, regField.LowBits(), base.LowBits()))
		if rspOrR12 {
			e.emitByte(sib(1, sibNoIndex, base.LowBits()))
		}
	case fitsInt8(disp):
		e.emitByte(modRM(modDisp8, regField.LowBits(), base.LowBits()))
		if rspOrR12 {
			e.emitByte(sib(1, sibNoIndex, base.LowBits()))
		}
		e.emitByte(byte(disp))
	default:
		e.emitByte(modRM(modDisp32, regField.LowBits(), base.LowBits()))
		if rspOrR12 {
			e.emitByte(sib(1, sibNoIndex, base.LowBits()))
		}
		e.emit4Bytes(uint32(disp))
	}
}

// emitSIBAddressed handles the base+index*scale+disp form.
func (e *Encoder) emitSIBAddressed(regField, index, base PhysReg, scale byte, disp int32) {
	if index.LowBits() == 4 && !index.IsExtended() {
		panic("BUG: RSP cannot be used as an addressing-mode index register")
	}
	baseNoDisp := base != RBP && base != R13
	switch {
	case disp == 0 && baseNoDisp:
		e.emitByte(modRM(modNoDisp, regField.LowBits(), sibNoIndex))
		e.emitByte(sib(scale, index.LowBits(), base.LowBits()))
	case fitsInt8(disp):
		e.emitByte(modRM(modDisp8, regField.LowBits(), sibNoIndex))
		e.emitByte(sib(scale, index.LowBits(), base.LowBits()))
		e.emitByte(byte(disp))
	default:
		e.emitByte(modRM(modDisp32, regField.LowBits(), sibNoIndex))
		e.emitByte(sib(scale, index.LowBits(), base.LowBits()))
		e.emit4Bytes(uint32(disp))
	}
}

func fitsInt8(v int32) bool { return v >= -128 && v <= 127 }

func physOf(r mcir.MicroReg) PhysReg {
	if !r.IsPhysical() {
		panic(fmt.Sprintf("BUG: encoder given unallocated virtual register %s", r))
	}
	if r.Class() == mcir.RegClassFloat {
		return PhysReg(uint32(XMM0) + r.Index())
	}
	return PhysReg(r.Index())
}

// RegUseDefInfo accumulates the implicit register facts of one
// instruction: registers an encoding reads or overwrites that appear
// nowhere in its operand array.
type RegUseDefInfo struct {
	ImplicitUses []mcir.MicroReg
	ImplicitDefs []mcir.MicroReg
}

// UpdateRegUseDef appends the ISA-level implicit uses/defs of (op, ops)
// to info. On this target only the divide family has any: div/idiv
// always read and write the RDX:RAX accumulator pair, whatever
// registers the operands name. Convention-dependent facts (what a call
// lets the callee clobber) are the register allocator's to layer on
// top; they aren't properties of an encoding.
func UpdateRegUseDef(op mcir.Opcode, ops []mcir.Operand, info *RegUseDefInfo) {
	if op != mcir.OpBinary || len(ops) == 0 {
		return
	}
	switch ops[0].Op {
	case mcir.MicroOpDivS, mcir.MicroOpDivU, mcir.MicroOpModS, mcir.MicroOpModU:
		info.ImplicitDefs = append(info.ImplicitDefs, RAX.VReg(), RDX.VReg())
	}
}

// ConformanceIssue is returned by QueryConformanceIssue naming why an
// instruction, as currently shaped, cannot be encoded directly.
type ConformanceIssue string

const (
	IssueNone                ConformanceIssue = ""
	IssueImmediateTooWide    ConformanceIssue = "immediate does not fit a sign-extended 32-bit field"
	IssueDisplacementTooWide ConformanceIssue = "jump displacement does not fit the recorded width"
)

// QueryConformanceIssue is a pre-flight check reporting whether an
// OpBinary's 64-bit immediate is too wide for this encoder to emit
// directly.
func QueryConformanceIssue(op mcir.Opcode, ops []mcir.Operand) ConformanceIssue {
	if op != mcir.OpBinary {
		return IssueNone
	}
	if len(ops) < 4 || ops[3].Kind != mcir.OperandKindU64 {
		return IssueNone
	}
	v := int64(ops[3].U64)
	if v < -(1<<31) || v >= (1<<31) {
		return IssueImmediateTooWide
	}
	return IssueNone
}
