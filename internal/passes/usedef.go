package passes

import "github.com/microlower/mcbackend/internal/mcir"

// UseDef is the per-opcode reflection table reporting which register
// operands an instruction reads and which (at most one, besides call
// results) it writes.
type UseDef struct {
	Uses []mcir.MicroReg
	Defs []mcir.MicroReg
}

func regsOf(ops []mcir.Operand, idx int, into *[]mcir.MicroReg) {
	if ops[idx].Kind == mcir.OperandKindReg {
		*into = append(*into, ops[idx].Reg)
	}
}

func amcRegsOf(ops []mcir.Operand, idx int, into *[]mcir.MicroReg) {
	if ops[idx].Kind != mcir.OperandKindAmc {
		return
	}
	a := ops[idx].Amc
	*into = append(*into, a.Base)
	if a.HasIndex {
		*into = append(*into, a.Index)
	}
}

// Compute returns the UseDef for one instruction, given its opcode and
// already-materialized operand slice.
func Compute(op mcir.Opcode, ops []mcir.Operand) UseDef {
	var ud UseDef
	switch op {
	case mcir.OpPush, mcir.OpCmpRegZero:
		regsOf(ops, 0, &ud.Uses)
	case mcir.OpPop:
		regsOf(ops, 0, &ud.Defs)
	case mcir.OpLoadRegReg, mcir.OpLoadRegRegSext, mcir.OpLoadRegRegZext:
		regsOf(ops, 0, &ud.Defs)
		regsOf(ops, 1, &ud.Uses)
	case mcir.OpLoadRegImm:
		regsOf(ops, 0, &ud.Defs)
	case mcir.OpLoadRegMem, mcir.OpLoadRegMemSext, mcir.OpLoadRegMemZext, mcir.OpLoadAmcRegMem:
		regsOf(ops, 0, &ud.Defs)
		amcRegsOf(ops, 1, &ud.Uses)
	case mcir.OpLoadMemReg, mcir.OpLoadAmcMemReg:
		amcRegsOf(ops, 0, &ud.Uses)
		regsOf(ops, 1, &ud.Uses)
	case mcir.OpLoadMemImm, mcir.OpLoadAmcMemImm:
		amcRegsOf(ops, 0, &ud.Uses)
	case mcir.OpLoadAddrRegMem:
		regsOf(ops, 0, &ud.Defs)
		amcRegsOf(ops, 1, &ud.Uses)
	case mcir.OpCmpRegReg:
		regsOf(ops, 0, &ud.Uses)
		regsOf(ops, 1, &ud.Uses)
	case mcir.OpCmpRegImm:
		regsOf(ops, 0, &ud.Uses)
	case mcir.OpCmpMemReg:
		amcRegsOf(ops, 0, &ud.Uses)
		regsOf(ops, 1, &ud.Uses)
	case mcir.OpCmpMemImm:
		amcRegsOf(ops, 0, &ud.Uses)
	case mcir.OpSetCondReg:
		regsOf(ops, 1, &ud.Defs)
	case mcir.OpLoadCondRegReg:
		regsOf(ops, 1, &ud.Defs)
		regsOf(ops, 1, &ud.Uses) // cmov reads its own destination on the not-taken path.
		regsOf(ops, 2, &ud.Uses)
	case mcir.OpUnary:
		regsOf(ops, 2, &ud.Uses)
		regsOf(ops, 2, &ud.Defs)
	case mcir.OpBinary:
		regsOf(ops, 2, &ud.Uses)
		regsOf(ops, 2, &ud.Defs)
		regsOf(ops, 3, &ud.Uses) // no-op if operand 3 is an immediate, not a register.
	case mcir.OpTernary:
		regsOf(ops, 2, &ud.Defs)
		regsOf(ops, 3, &ud.Uses)
		regsOf(ops, 4, &ud.Uses)
	case mcir.OpCallIndirect:
		regsOf(ops, 0, &ud.Uses)
	case mcir.OpJumpReg:
		regsOf(ops, 0, &ud.Uses)
	case mcir.OpJumpTable:
		regsOf(ops, 0, &ud.Uses)
	case mcir.OpSymbolRelocAddr:
		regsOf(ops, 0, &ud.Defs)
	}

	// Implicit clobbers (the divide family's RDX:RAX, and the registers a
	// call lets the callee overwrite) are not per-operand facts and are
	// not reported here; RegAlloc adds them through implicitClobbers.
	return ud
}
