package mcir

import "fmt"

// instrPage and operandPage are the two logical streams backed by the
// arena: one function's worth of instructions, and the (larger) flat
// array of their operands. Pages are fixed-size and never reallocated
// in place; growth only appends a new page to the page list, so any Ref
// handed out earlier stays valid for the arena's whole lifetime.
type instrPage [pageSize]Instr
type operandPage [pageSize]Operand

// Storage is the paged arena for one function's builder. It owns two independent page lists: one
// for instructions, one for operand arrays. A Ref into one is never
// confused with a Ref into the other because callers keep them in
// separate typed fields (Instr.Operands vs. whatever referenced the
// Instr itself).
type Storage struct {
	instrPages   []*instrPage
	instrLen     uint32
	operandPages []*operandPage
	operandLen   uint32
}

// NewStorage returns an empty arena.
func NewStorage() *Storage {
	return &Storage{}
}

// AppendInstr reserves one instruction slot and numOperands contiguous
// operand slots, returning the instruction's stable Ref. The reserved
// operands start life as zero-valued (OperandKindInvalid); callers fill
// them in immediately through the pointer Operand returns.
func (s *Storage) AppendInstr(opcode Opcode, numOperands int) Ref {
	opsRef := s.reserveOperands(numOperands)
	page, slot := s.instrLen/pageSize, s.instrLen%pageSize
	if int(page) == len(s.instrPages) {
		s.instrPages = append(s.instrPages, &instrPage{})
	}
	ref := makeRef(page, slot)
	s.instrPages[page][slot] = Instr{
		Opcode:   opcode,
		NumOps:   uint16(numOperands),
		Operands: opsRef,
	}
	s.instrLen++
	return ref
}

func (s *Storage) reserveOperands(n int) Ref {
	if n == 0 {
		return RefInvalid
	}
	first := s.operandLen
	for i := 0; i < n; i++ {
		page, slot := s.operandLen/pageSize, s.operandLen%pageSize
		if int(page) == len(s.operandPages) {
			s.operandPages = append(s.operandPages, &operandPage{})
		}
		s.operandPages[page][slot] = Operand{}
		s.operandLen++
	}
	page, slot := first/pageSize, first%pageSize
	return makeRef(page, slot)
}

// Instr returns the instruction data at ref. Valid for the lifetime of
// the Storage, regardless of intervening appends or erases elsewhere.
func (s *Storage) Instr(ref Ref) *Instr {
	page, slot := refPage(ref), refSlot(ref)
	if int(page) >= len(s.instrPages) {
		panic(fmt.Sprintf("BUG: Instr(%d) out of range", ref))
	}
	return &s.instrPages[page][slot]
}

// Operand returns the i-th operand of the instruction whose operand
// array begins at opsRef.
func (s *Storage) Operand(opsRef Ref, i int) *Operand {
	base := uint32(opsRef - 1)
	idx := base + uint32(i)
	page, slot := idx/pageSize, idx%pageSize
	if int(page) >= len(s.operandPages) {
		panic(fmt.Sprintf("BUG: Operand out of range at index %d", i))
	}
	return &s.operandPages[page][slot]
}

// Operands returns a copy of the instruction's full operand slice, for
// reading. Mutation goes through Operand, whose pointer aliases the
// arena's storage.
func (s *Storage) Operands(in *Instr) []Operand {
	out := make([]Operand, in.NumOps)
	for i := range out {
		out[i] = *s.Operand(in.Operands, i)
	}
	return out
}

// Erase logically deletes the instruction at ref. View iteration elides
// tombstoned instructions; the slot's storage is never reused and the
// Ref remains a valid key into Storage for debugging purposes (Instr
// still returns the tombstoned data with Dead()==true).
func (s *Storage) Erase(ref Ref) {
	s.Instr(ref).dead = true
}

// Len returns the number of instruction slots ever appended, including
// tombstoned ones.
func (s *Storage) Len() uint32 { return s.instrLen }

// View returns a forward iterator over the live (non-tombstoned)
// instructions in append order, yielding each instruction's Ref.
func (s *Storage) View() []Ref {
	out := make([]Ref, 0, s.instrLen)
	for i := uint32(0); i < s.instrLen; i++ {
		page, slot := i/pageSize, i%pageSize
		ref := makeRef(page, slot)
		if !s.instrPages[page][slot].dead {
			out = append(out, ref)
		}
	}
	return out
}
