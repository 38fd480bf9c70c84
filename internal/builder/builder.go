// Package builder implements the micro-instruction builder: an append-only front for the paged arena (package
// mcir) plus the auxiliary code-relocation table front-ends populate as
// they emit symbol-referencing instructions. Shaped as a capability
// set — one Encode method per logical operation, each appending to a
// single linked instruction stream — rather than an interface with one
// implementor.
package builder

import (
	"fmt"

	"github.com/microlower/mcbackend/internal/mcir"
)

// Builder is the append-only front-end-facing API. One Builder, and the
// mcir.Storage it owns, exists per function being lowered; nothing about
// it is safe to share across concurrently-compiling functions.
type Builder struct {
	storage *mcir.Storage

	codeRelocations []mcir.CodeRelocation

	nextVReg [mcir.NumRegClass]uint32

	// labelAt records, for every Ref an OpLabel instruction was given,
	// that the Ref is indeed a label (used by EncodePatchJump's
	// assertions and by passes that need to tell a plain Ref from one
	// that names a label).
	labelAt map[mcir.Ref]bool
}

// New returns an empty Builder over a fresh arena.
func New() *Builder {
	return &Builder{storage: mcir.NewStorage(), labelAt: map[mcir.Ref]bool{}}
}

// Storage exposes the underlying arena to the pass manager, which
// must be able to walk and mutate the instruction stream directly.
func (b *Builder) Storage() *mcir.Storage { return b.storage }

// AllocVReg returns a fresh, dense, per-function virtual register of the
// given class.
func (b *Builder) AllocVReg(class mcir.RegClass) mcir.MicroReg {
	idx := b.nextVReg[class]
	b.nextVReg[class]++
	return mcir.NewVirtualReg(class, idx)
}

// CodeRelocations returns the relocations accumulated so far.
func (b *Builder) CodeRelocations() []mcir.CodeRelocation { return b.codeRelocations }

// ClearCodeRelocations resets the per-function relocation vector. Lower
// calls it before running the passes, and Emit calls it again before
// re-recording every relocation from the instruction stream.
func (b *Builder) ClearCodeRelocations() { b.codeRelocations = nil }

func (b *Builder) recordRelocation(kind mcir.RelocKind, instr mcir.Ref, sym mcir.IdentRef, addend int32) {
	b.codeRelocations = append(b.codeRelocations, mcir.CodeRelocation{
		Kind:   kind,
		Instr:  instr,
		Symbol: sym,
		Addend: addend,
	})
}

// RecordRelocation lets the emit pass (package passes) append
// relocations once bytes actually exist: emit resets this table and
// re-records an entry per relocating instruction it encodes, making the
// instruction stream, not the build-time table, the durable record.
func (b *Builder) RecordRelocation(kind mcir.RelocKind, instr mcir.Ref, sym mcir.IdentRef, addend int32) {
	b.recordRelocation(kind, instr, sym, addend)
}

// append is the single choke point through which every EncodeX method
// appends one instruction with the given operands, each supplied in
// fixed positional order per opcode.go's documented contract.
func (b *Builder) append(op mcir.Opcode, flags mcir.EmitFlags, operands ...mcir.Operand) mcir.Ref {
	ref := b.storage.AppendInstr(op, len(operands))
	in := b.storage.Instr(ref)
	in.Flags = flags
	for i, o := range operands {
		*b.storage.Operand(in.Operands, i) = o
	}
	return ref
}

func (b *Builder) assertClass(r mcir.MicroReg, want mcir.RegClass, who string) {
	if r.Class() != want {
		panic(fmt.Sprintf("BUG: %s expected a %s register, got %s", who, want, r.Class()))
	}
}

func (b *Builder) assertBits(bits mcir.OpBits, who string) {
	switch bits {
	case mcir.OpBits8, mcir.OpBits16, mcir.OpBits32, mcir.OpBits64, mcir.OpBits128:
		return
	default:
		panic(fmt.Sprintf("BUG: %s given invalid OpBits %d", who, bits))
	}
}

// String renders the whole instruction stream for debugging — the
// backend's only "logging" surface.
func (b *Builder) String() string {
	out := ""
	for _, ref := range b.storage.View() {
		in := b.storage.Instr(ref)
		ops := b.storage.Operands(in)
		out += fmt.Sprintf("%5d: %s", ref, in.Opcode)
		for _, o := range ops {
			out += " " + o.String()
		}
		out += "\n"
	}
	return out
}
