// Package passes implements the pass manager and passes: legalize, register allocation, prolog/epilog, the
// peephole fixed-point loop (copy propagation, dead-code elimination,
// instruction combine, strength reduction, load/store forwarding,
// branch folding, CFG simplify), and emit: an ordered list of pass
// functions, some re-run to a fixed point, followed by a distinct
// regalloc/prologue split.
package passes

import (
	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/x64"
)

// Context is the pass context threaded through every pass.
//
// Order is the function's current program order, independent of the
// underlying arena's append order: mcir.Storage is append-only, so a pass that needs to insert an instruction in the middle of
// the stream (legalize splitting a memory-to-memory move, regalloc
// inserting a reload, prolog/epilog prepending pushes) appends the new
// instruction to the arena via Builder and splices its Ref into Order at
// the right position, rather than mutating the arena's own sequencing.
// Only the emit pass walks Order to produce bytes; the
// arena itself never needs to reflect it.
type Context struct {
	Builder                *builder.Builder
	Encoder                *x64.Encoder
	CallConvKind           mcir.CallConvKind
	PreservePersistentRegs bool

	// SkipOptimizations is set by the caller for OptLevel O0: the
	// fixed-point peephole loop (copy-prop, DCE, combine, strength
	// reduction, load/store forward, branch fold, CFG simplify) never
	// runs. Legalize, regalloc, prolog/epilog, and emit still run
	// unconditionally — they are not optimizations, they are what makes
	// the instruction stream encodable at all.
	SkipOptimizations bool

	Order []mcir.Ref

	// Populated by the register-allocation pass, consumed by
	// prolog/epilog and (for debugging) by emit.
	SpillAreaSize  int64
	ClobberedInt   []mcir.MicroReg
	ClobberedFloat []mcir.MicroReg

	// ResultBytes and ResultRelocations are populated by the emit pass.
	ResultBytes       []byte
	ResultRelocations []mcir.CodeRelocation
}

func (c *Context) storage() *mcir.Storage { return c.Builder.Storage() }
