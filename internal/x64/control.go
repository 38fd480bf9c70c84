package x64

import (
	"fmt"

	"github.com/microlower/mcbackend/internal/mcir"
)

// EncodePush emits a push of a 64-bit GPR (opcode 0x50+reg; x86-64 has no
// encoding for pushing a 32-bit GPR).
func (e *Encoder) EncodePush(r mcir.MicroReg) {
	p := physOf(r)
	if p.IsExtended() {
		e.emitByte(0x41)
	}
	e.emitByte(0x50 | p.LowBits())
}

// EncodePop emits a pop of a 64-bit GPR (opcode 0x58+reg).
func (e *Encoder) EncodePop(r mcir.MicroReg) {
	p := physOf(r)
	if p.IsExtended() {
		e.emitByte(0x41)
	}
	e.emitByte(0x58 | p.LowBits())
}

// EncodeRet emits a near return (0xC3).
func (e *Encoder) EncodeRet() {
	e.emitByte(0xC3)
}

// EncodeNop emits a single-byte nop (0x90).
func (e *Encoder) EncodeNop() {
	e.emitByte(0x90)
}

// EncodeCallRel32 emits a direct call (0xE8 rel32) with a zeroed
// placeholder displacement, returning the byte offset of that
// displacement field so the caller can bind a relocation against it
// once the callee's final address (local symbol) or link-time address
// (extern symbol) is known.
func (e *Encoder) EncodeCallRel32() int {
	e.emitByte(0xE8)
	off := e.CurrentOffset()
	e.emit4Bytes(0)
	return off
}

// EncodeCallIndirect emits a call through a register (0xFF /2).
func (e *Encoder) EncodeCallIndirect(r mcir.MicroReg) {
	p := physOf(r)
	e.emitRex(0, 0, p)
	e.emitByte(0xFF)
	e.emitByte(modRM(modReg, 2, p.LowBits()))
}

// EncodeJumpReg emits an indirect jump through a register (0xFF /4).
func (e *Encoder) EncodeJumpReg(r mcir.MicroReg) {
	p := physOf(r)
	e.emitRex(0, 0, p)
	e.emitByte(0xFF)
	e.emitByte(modRM(modReg, 4, p.LowBits()))
}

// EncodeJump emits an unconditional near jump (0xE9 rel32) with a
// zeroed placeholder displacement and returns a MicroJump describing
// where that displacement lives for later patching.
func (e *Encoder) EncodeJump() mcir.MicroJump {
	e.emitByte(0xE9)
	off := e.CurrentOffset()
	e.emit4Bytes(0)
	return mcir.MicroJump{BufOffset: off, Width: mcir.OpBits32, Valid: true}
}

// EncodeJumpCond emits a near conditional jump (0F 80+cc rel32) with a
// zeroed placeholder displacement and returns its MicroJump. cond must
// not be CondAlways — an always-taken branch is encoded with EncodeJump
// once CFG simplify or the emit pass recognizes it as unconditional.
func (e *Encoder) EncodeJumpCond(cond mcir.Condition) mcir.MicroJump {
	if cond.IsAlways() {
		panic("BUG: EncodeJumpCond given CondAlways; caller must use EncodeJump")
	}
	e.emitByte(0x0F)
	e.emitByte(0x80 | ccCode[cond])
	off := e.CurrentOffset()
	e.emit4Bytes(0)
	return mcir.MicroJump{BufOffset: off, Width: mcir.OpBits32, Valid: true}
}

// PatchJump overwrites the 32-bit displacement field recorded by j with
// the distance from the byte immediately following that field to
// targetOffset. Panics if j is not Valid or if the displacement
// overflows int32 — the latter can only happen for functions far larger
// than any realistic single compilation unit, and is surfaced as a
// internal error rather than silently truncated.
func (e *Encoder) PatchJump(j mcir.MicroJump, targetOffset int) {
	if !j.Valid {
		panic("BUG: PatchJump given an invalid MicroJump")
	}
	rel := int64(targetOffset) - int64(j.BufOffset+4)
	if rel < -(1<<31) || rel >= (1<<31) {
		panic(fmt.Sprintf("BUG: jump displacement %d does not fit in rel32", rel))
	}
	buf := e.buf[j.BufOffset : j.BufOffset+4]
	v := uint32(int32(rel))
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

// EncodeSymbolRelocAddr emits a 10-byte movabs placeholder (REX.W B8+reg
// imm64) whose immediate field the caller binds a RelocAbs64 relocation
// against once the symbol's final address is known — the idiomatic way
// to materialize an absolute address of a symbol the encoder can't
// resolve itself. Returns the immediate field's byte offset. Always
// emits the full 8-byte movabs form, even though the placeholder value
// is zero, because EncodeLoadRegImm would otherwise pick its compact
// 4-byte imm32 encoding and leave the relocation with nowhere to write a
// 64-bit address.
func (e *Encoder) EncodeSymbolRelocAddr(dst mcir.MicroReg) int {
	r := physOf(dst)
	e.emitRex(rexW, 0, r)
	e.emitByte(0xB8 | r.LowBits())
	off := e.CurrentOffset()
	e.emit8Bytes(0)
	return off
}

// EncodeSymbolRelocValue emits a bare 4-byte zeroed rel32 placeholder
// with no accompanying opcode, for a front-end that embeds a
// PC-relative symbol reference directly into the code stream (e.g. a
// jump-table entry, or a position-independent data reference). Returns
// its byte offset.
func (e *Encoder) EncodeSymbolRelocValue() int {
	off := e.CurrentOffset()
	e.emit4Bytes(0)
	return off
}
