package mcir

// EmitFlags are per-instruction hints consumed by legalize and the
// encoder; they never change instruction semantics, only how it is
// lowered (e.g. "this immediate load may be dropped if the destination
// is later found dead").
type EmitFlags uint16

const (
	EmitFlagNone EmitFlags = 0
	// EmitFlagPreservesFlags tells DCE/copy-prop this instruction does not
	// clobber the flags register, so a following flags-consuming
	// instruction may still see the last compare's result across it.
	EmitFlagPreservesFlags EmitFlags = 1 << iota
	// EmitFlagFromLegalize marks an instruction synthesized by legalize
	// (e.g. the scratch-register half of a mem-to-mem move), so later
	// passes don't re-legalize it.
	EmitFlagFromLegalize
)

// Instr is one micro-instruction: an opcode plus a reference to its
// operand array living in the same arena. It is a fixed-size value so
// the instruction page can be a flat slice.
type Instr struct {
	Opcode   Opcode
	Flags    EmitFlags
	NumOps   uint16
	Operands Ref // first operand's Ref; operands are contiguous.
	dead     bool
}

// Dead reports whether this instruction has been logically erased.
// Storage.View skips dead instructions.
func (i Instr) Dead() bool { return i.dead }
