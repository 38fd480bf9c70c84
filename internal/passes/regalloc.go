package passes

import (
	"sort"

	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/x64"
)

// allocatableInt and allocatableFloat are the architecture-fixed pools
// linear scan draws from, in caller-saved-scratch-first preference order
// (to avoid needless callee-save spills in short-lived functions): RSP
// and RBP are never allocatable, the former
// because every pass assumes it means "the stack pointer" and the latter
// because prolog/epilog pins it to the frame base whenever
// PreservePersistentRegs is set.
var allocatableInt = []x64.PhysReg{
	x64.RAX, x64.RCX, x64.RDX, x64.RSI, x64.RDI, x64.R8, x64.R9,
	x64.RBX, x64.R12, x64.R13, x64.R14, x64.R15,
}

var allocatableFloat = []x64.PhysReg{
	x64.XMM0, x64.XMM1, x64.XMM2, x64.XMM3, x64.XMM4, x64.XMM5, x64.XMM6,
	x64.XMM8, x64.XMM9, x64.XMM10, x64.XMM11, x64.XMM12, x64.XMM13,
}

// spillScratch{Int,Float}{1,2} are held out of the allocatable pools
// above specifically so insertSpillCode (spill.go) always has registers
// free to reload into, for exactly the span of one instruction, without
// risking a collision with that same instruction's other operands. Two
// per class covers every opcode this IR defines; an
// instruction can reference at most two spilled registers of one class
// at once.
const (
	spillScratchInt1   = x64.R10
	spillScratchInt2   = x64.R11
	spillScratchFloat1 = x64.XMM14
	spillScratchFloat2 = x64.XMM15
)

func allocatablePool(class mcir.RegClass) []x64.PhysReg {
	if class == mcir.RegClassFloat {
		return allocatableFloat
	}
	return allocatableInt
}

// activeInterval is a currently-live interval paired with its assigned
// physical register (or spill slot, if spilled).
type activeInterval struct {
	iv       interval
	phys     x64.PhysReg
	spilled  bool
	spillOff int64
}

// RegAlloc is the register-allocation pass: a linear scan over live
// intervals derived from a label/jump-built CFG, spilling the interval
// whose live range ends latest when pressure exceeds the physical
// register file.
func RegAlloc(ctx *Context) error {
	s := ctx.storage()
	order := ctx.Order
	c := buildCFG(s, order)
	cc := abi.Get(ctx.CallConvKind)

	ud := make([]UseDef, len(order))
	for i, ref := range order {
		in := s.Instr(ref)
		ops := s.Operands(in)
		ud[i] = Compute(in.Opcode, ops)
		// Implicit clobbers aren't per-operand facts, so they live here
		// rather than in Compute: the divide family funnels through
		// RDX:RAX regardless of the operand registers, and a call frees
		// the callee to overwrite every caller-saved register. Recording
		// them as defs keeps isPhysBusy from parking an interval in a
		// register the instruction is about to destroy.
		ud[i].Defs = append(ud[i].Defs, implicitClobbers(in.Opcode, ops, cc)...)
	}

	lv := computeLiveness(s, c, ud)
	ivsByClass := map[mcir.RegClass][]interval{}
	for _, iv := range buildIntervals(order, ud, lv) {
		ivsByClass[iv.reg.Class()] = append(ivsByClass[iv.reg.Class()], iv)
	}

	assignment := map[mcir.MicroReg]mcir.MicroReg{} // original vreg -> physical MicroReg
	spillSlot := map[mcir.MicroReg]int64{}
	var nextSpillOffset int64
	var clobberedInt, clobberedFloat []mcir.MicroReg
	clobbered := map[mcir.MicroReg]bool{}

	for class, ivs := range ivsByClass {
		pool := allocatablePool(class)
		var active []*activeInterval

		isPhysBusy := func(p x64.PhysReg, start, end int) bool {
			target := p.VReg()
			for i := start; i <= end && i < len(order); i++ {
				if lv.before[i][target] || lv.after[i][target] {
					return true
				}
				for _, r := range ud[i].Uses {
					if r == target {
						return true
					}
				}
				for _, r := range ud[i].Defs {
					if r == target {
						return true
					}
				}
			}
			return false
		}

		for _, iv := range ivs {
			// Expire intervals that ended before this one starts.
			kept := active[:0]
			for _, a := range active {
				if a.iv.end < iv.start {
					continue
				}
				kept = append(kept, a)
			}
			active = kept

			used := map[x64.PhysReg]bool{}
			for _, a := range active {
				used[a.phys] = true
			}

			var chosen x64.PhysReg
			found := false
			for _, p := range pool {
				if used[p] {
					continue
				}
				if isPhysBusy(p, iv.start, iv.end) {
					continue
				}
				chosen = p
				found = true
				break
			}

			if !found {
				// Spill heuristic: evict the active
				// interval with the latest end, unless that is the
				// interval currently being assigned (in which case
				// it, not an active one, is spilled).
				worst := -1
				for i, a := range active {
					if worst == -1 || a.iv.end > active[worst].iv.end {
						worst = i
					}
				}
				if worst >= 0 && active[worst].iv.end > iv.end {
					evicted := active[worst]
					off := nextSpillOffset
					nextSpillOffset += int64(cc.StackSlotSize)
					evicted.spilled = true
					evicted.spillOff = off
					spillSlot[evicted.iv.reg] = off
					assignment[evicted.iv.reg] = mcir.MicroReg(0)

					chosen = evicted.phys
					found = true
					active[worst] = &activeInterval{iv: iv, phys: chosen}
				} else {
					off := nextSpillOffset
					nextSpillOffset += int64(cc.StackSlotSize)
					spillSlot[iv.reg] = off
					assignment[iv.reg] = mcir.MicroReg(0)
					continue
				}
			} else {
				active = append(active, &activeInterval{iv: iv, phys: chosen})
			}

			phys := chosen.VReg()
			assignment[iv.reg] = phys
			if !clobbered[phys] {
				clobbered[phys] = true
				if class == mcir.RegClassFloat {
					clobberedFloat = append(clobberedFloat, phys)
				} else {
					clobberedInt = append(clobberedInt, phys)
				}
			}
		}
	}

	rewriteOperands(s, order, assignment)

	// Clobbered sets and the spill-area size must be known before spill
	// code is inserted: spillAddr (spill.go) addresses every slot below
	// the callee-saved pushes PrologEpilog will emit, so the slot
	// displacement depends on how many integer registers get pushed.
	ctx.SpillAreaSize = alignUp(nextSpillOffset, cc.StackSlotSize)
	ctx.ClobberedInt = filterCalleeSaved(clobberedInt, cc.CalleeSavedInt)
	ctx.ClobberedFloat = filterCalleeSaved(clobberedFloat, cc.CalleeSavedFloat)

	insertSpillCode(ctx, ud, assignment, spillSlot)
	return nil
}

// rewriteOperands replaces every allocated virtual register operand with
// its assigned physical MicroReg in place. Registers left unassigned
// (spilled, or never claimed a free physical slot) are resolved by
// insertSpillCode instead.
func rewriteOperands(s *mcir.Storage, order []mcir.Ref, assignment map[mcir.MicroReg]mcir.MicroReg) {
	for _, ref := range order {
		in := s.Instr(ref)
		for i := 0; i < int(in.NumOps); i++ {
			op := s.Operand(in.Operands, i)
			switch op.Kind {
			case mcir.OperandKindReg:
				if p, ok := assignment[op.Reg]; ok && p != 0 {
					op.Reg = p
				}
			case mcir.OperandKindAmc:
				if p, ok := assignment[op.Amc.Base]; ok && p != 0 {
					op.Amc.Base = p
				}
				if op.Amc.HasIndex {
					if p, ok := assignment[op.Amc.Index]; ok && p != 0 {
						op.Amc.Index = p
					}
				}
			}
		}
	}
}

func filterCalleeSaved(clobbered, calleeSaved []mcir.MicroReg) []mcir.MicroReg {
	saved := map[mcir.MicroReg]bool{}
	for _, r := range calleeSaved {
		saved[r] = true
	}
	var out []mcir.MicroReg
	for _, r := range clobbered {
		if saved[r] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

// implicitClobbers reports the physical registers an instruction
// overwrites beyond its declared operands: the divide family always
// funnels through RDX:RAX, and a call entitles the callee to trash
// every register the convention does not mark callee-saved.
func implicitClobbers(op mcir.Opcode, ops []mcir.Operand, cc *abi.CallConv) []mcir.MicroReg {
	var info x64.RegUseDefInfo
	x64.UpdateRegUseDef(op, ops, &info)
	switch {
	case len(info.ImplicitDefs) > 0:
		return info.ImplicitDefs
	case op.IsCall():
		saved := map[mcir.MicroReg]bool{}
		for _, r := range cc.CalleeSavedInt {
			saved[r] = true
		}
		for _, r := range cc.CalleeSavedFloat {
			saved[r] = true
		}
		var out []mcir.MicroReg
		for _, p := range allocatableInt {
			if v := p.VReg(); !saved[v] {
				out = append(out, v)
			}
		}
		for _, p := range allocatableFloat {
			if v := p.VReg(); !saved[v] {
				out = append(out, v)
			}
		}
		return out
	default:
		return nil
	}
}

func alignUp(v, align int64) int64 {
	if align <= 0 {
		return v
	}
	if r := v % align; r != 0 {
		v += align - r
	}
	return v
}
