package builder

import "github.com/microlower/mcbackend/internal/mcir"

// EncodeEnd appends the terminal pseudo-op marking the end of a
// function's micro-instruction stream.
func (b *Builder) EncodeEnd() mcir.Ref { return b.append(mcir.OpEnd, mcir.EmitFlagNone) }

// EncodeNop appends an opcode the encoder and every optimization pass
// treats as semantically inert filler.
func (b *Builder) EncodeNop() mcir.Ref { return b.append(mcir.OpNop, mcir.EmitFlagNone) }

// EncodeLabel appends a label instruction and returns its own Ref, which
// doubles as the label's identity: a later EncodeJump's target operand
// names this same Ref.
func (b *Builder) EncodeLabel() mcir.Ref {
	ref := b.append(mcir.OpLabel, mcir.EmitFlagNone, mcir.Operand{})
	*b.storage.Operand(b.storage.Instr(ref).Operands, 0) = mcir.OperandLabel(ref)
	b.labelAt[ref] = true
	return ref
}

// EncodeDebug appends a Debug pseudo-op carrying a string-table
// identifier, kept alive through every pass.
func (b *Builder) EncodeDebug(id mcir.IdentRef) mcir.Ref {
	return b.append(mcir.OpDebug, mcir.EmitFlagNone, mcir.OperandIdent(id))
}

// EncodeEnter appends the front-end's advisory frame-size hint; prolog/
// epilog recomputes the authoritative size once spill slots are known
// and does not trust this value.
func (b *Builder) EncodeEnter(frameSizeHint uint32) mcir.Ref {
	return b.append(mcir.OpEnter, mcir.EmitFlagNone, mcir.OperandU32(frameSizeHint))
}

// EncodeLeave appends the matching function-exit pseudo-op.
func (b *Builder) EncodeLeave() mcir.Ref { return b.append(mcir.OpLeave, mcir.EmitFlagNone) }
