package mcbackend

import (
	"fmt"
	"strings"

	"github.com/microlower/mcbackend/internal/mcir"
)

// LoweredMicroCode is Lower's output: the emitted byte stream plus every
// outstanding code relocation the emit pass discovered.
type LoweredMicroCode struct {
	Bytes           []byte
	CodeRelocations []mcir.CodeRelocation
}

// Disassemble renders a byte-offset hex listing, this backend's only
// "logging" surface for the final machine code. It is not a
// disassembler: bytes are grouped, not decoded into mnemonics.
func (l *LoweredMicroCode) Disassemble() string {
	var sb strings.Builder
	relocAt := map[uint32]mcir.CodeRelocation{}
	for _, r := range l.CodeRelocations {
		relocAt[r.CodeOffset] = r
	}
	for off := 0; off < len(l.Bytes); off += 16 {
		end := off + 16
		if end > len(l.Bytes) {
			end = len(l.Bytes)
		}
		fmt.Fprintf(&sb, "%6d: % x", off, l.Bytes[off:end])
		for o := off; o < end; o++ {
			if r, ok := relocAt[uint32(o)]; ok {
				fmt.Fprintf(&sb, "  <reloc %s sym#%d+%d @%d>", relocKindName(r.Kind), r.Symbol, r.Addend, o)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func relocKindName(k mcir.RelocKind) string {
	switch k {
	case mcir.RelocAbs64:
		return "abs64"
	case mcir.RelocRel32:
		return "rel32"
	default:
		return "invalid"
	}
}

// SymbolResolver maps an IdentRef (a symbol table entry the front-end
// owns and the backend never resolves on its own) to its final address.
// ok is false for a symbol the resolver has no address for, which
// ApplyRelocations surfaces as a RelocationError rather than silently
// leaving the placeholder bytes in place.
type SymbolResolver func(symbol mcir.IdentRef) (address uint64, ok bool)

// RelocationError is the structured, caller-surfaced failure for a
// relocation that cannot be bound: an unresolved symbol, or a Rel32
// displacement outside ±2 GiB of the patch site.
type RelocationError struct {
	Reloc  mcir.CodeRelocation
	Reason string
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("mcbackend: relocation %s at offset %d for symbol #%d: %s",
		relocKindName(e.Reloc.Kind), e.Reloc.CodeOffset, e.Reloc.Symbol, e.Reason)
}

// ApplyRelocations binds every outstanding relocation in l.CodeRelocations
// against code in place: Abs64 overwrites 8 bytes with the absolute
// address, Rel32 overwrites 4 bytes with a PC-relative displacement as
// an int32, and a displacement outside the int32 range is returned as a
// RelocationError. code must be
// the same byte slice (or a copy of identical layout) as l.Bytes; callers
// that already copied the bytes into JIT-allocated memory pass that copy
// directly, since relocations must be bound before MakeExecutable.
func (l *LoweredMicroCode) ApplyRelocations(code []byte, resolve SymbolResolver) error {
	for _, r := range l.CodeRelocations {
		addr, ok := resolve(r.Symbol)
		if !ok {
			return &RelocationError{Reloc: r, Reason: "symbol has no known address"}
		}
		switch r.Kind {
		case mcir.RelocAbs64:
			if int(r.CodeOffset)+8 > len(code) {
				return &RelocationError{Reloc: r, Reason: "abs64 patch site out of range"}
			}
			v := addr + uint64(r.Addend)
			for i := 0; i < 8; i++ {
				code[int(r.CodeOffset)+i] = byte(v >> (8 * i))
			}
		case mcir.RelocRel32:
			if int(r.CodeOffset)+4 > len(code) {
				return &RelocationError{Reloc: r, Reason: "rel32 patch site out of range"}
			}
			rel := int64(addr) + int64(r.Addend) - int64(r.CodeOffset+4)
			if rel < -(1<<31) || rel >= (1<<31) {
				return &RelocationError{Reloc: r, Reason: "rel32 displacement out of ±2GiB range"}
			}
			v := uint32(int32(rel))
			for i := 0; i < 4; i++ {
				code[int(r.CodeOffset)+i] = byte(v >> (8 * i))
			}
		default:
			return &RelocationError{Reloc: r, Reason: "unknown relocation kind"}
		}
	}
	return nil
}
