package mcir

import "math"

// JumpTableMaximumOffset bounds the byte size of an OpJumpTable's backing
// table: without a cap, a pathological front-end could request a table
// addressed by a 32-bit index, which would dwarf any realistic function
// body long before the rest of the pipeline's other limits kick in.
const JumpTableMaximumOffset = math.MaxUint32

// MicroJump records where, in the eventually-emitted byte stream, a
// conditional or unconditional branch's displacement field lives, so it
// can be patched once the target's final offset is known. Unlike a raw
// pointer, BufOffset is stable across any buffer growth (Go slices may
// reallocate; offsets do not).
type MicroJump struct {
	// BufOffset is the byte offset, within the encoder's code buffer, of
	// the first byte of the displacement field.
	BufOffset int
	// Width is the width of the displacement field itself (8 or 32 bits
	// for x86-64 short/near jumps), not the width of the operation being
	// jumped on.
	Width OpBits
	// Valid is false until the encoder has actually emitted the
	// instruction carrying this jump. Patching an invalid MicroJump is a
	// fatal internal error.
	Valid bool
}

// RelocKind is the kind of a CodeRelocation.
type RelocKind byte

const (
	RelocInvalid RelocKind = iota
	// RelocAbs64 overwrites 8 bytes at CodeOffset with symbolAddress+Addend.
	RelocAbs64
	// RelocRel32 overwrites 4 bytes at CodeOffset with
	// (symbolAddress+Addend) - (CodeOffset+4), truncated to int32; the
	// binder fails if that does not fit.
	RelocRel32
)

// Wire-format constants surfaced for PE-COFF linker interoperability.
const (
	ImageRelAMD64Addr64 = 0x0001
	ImageRelAMD64Rel32  = 0x0004
)

func (k RelocKind) Wire() uint8 {
	switch k {
	case RelocAbs64:
		return ImageRelAMD64Addr64
	case RelocRel32:
		return ImageRelAMD64Rel32
	default:
		panic("BUG: Wire on invalid RelocKind")
	}
}

// CodeRelocation is one outstanding reference to an external or
// not-yet-placed symbol within the emitted byte stream.
type CodeRelocation struct {
	Kind       RelocKind
	Instr      Ref
	Symbol     IdentRef
	CodeOffset uint32
	Addend     int32
}

// AppendWire appends the record's little-endian wire form — u8 kind
// (1=Abs64, 2=Rel32), u32 code_offset, u32 symbol_index, i32 addend —
// to dst and returns the extended slice. This is the layout handed to a
// host linker alongside the code bytes; the in-memory Instr field is
// backend bookkeeping and is not serialized.
func (r CodeRelocation) AppendWire(dst []byte) []byte {
	dst = append(dst, byte(r.Kind))
	dst = appendU32(dst, r.CodeOffset)
	dst = appendU32(dst, uint32(r.Symbol))
	dst = appendU32(dst, uint32(r.Addend))
	return dst
}

func appendU32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
