//go:build debug_asm

// Package refasm cross-checks the x86-64 encoder (package x64) against
// golang-asm, the Go toolchain's own assembler, for a handful of
// representative instruction forms. It exists purely for debugging a
// suspected encoder bug and is excluded from normal builds: import it,
// and the tests that use it, only with -tags debug_asm.
//
// Note: this will be removed once the x64 encoder's test suite is
// believed trustworthy on its own.
package refasm

import (
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// Reference wraps a golang-asm builder scoped to one assembled sequence.
type Reference struct {
	b *goasm.Builder
}

// New returns a Reference over a fresh amd64 builder with room for
// sizeHint bytes of program.
func New(sizeHint int) (*Reference, error) {
	b, err := goasm.NewBuilder("amd64", sizeHint)
	if err != nil {
		return nil, fmt.Errorf("refasm: new builder: %w", err)
	}
	return &Reference{b: b}, nil
}

func (r *Reference) add(as obj.As, from, to obj.Addr) {
	p := r.b.NewProg()
	p.As = as
	p.From = from
	p.To = to
	r.b.AddInstruction(p)
}

// MOVLRegImm32 appends `movl $imm, reg` (32-bit immediate move).
func (r *Reference) MOVLRegImm32(reg int16, imm int64) {
	r.add(x86.AMOVL,
		obj.Addr{Type: obj.TYPE_CONST, Offset: imm},
		obj.Addr{Type: obj.TYPE_REG, Reg: reg})
}

// ADDQRegReg appends `addq src, dst`.
func (r *Reference) ADDQRegReg(dst, src int16) {
	r.add(x86.AADDQ,
		obj.Addr{Type: obj.TYPE_REG, Reg: src},
		obj.Addr{Type: obj.TYPE_REG, Reg: dst})
}

// RET appends a bare return.
func (r *Reference) RET() {
	r.add(obj.ARET, obj.Addr{}, obj.Addr{})
}

// Assemble finalizes the program and returns the machine code
// golang-asm produced for it.
func (r *Reference) Assemble() ([]byte, error) {
	return r.b.Assemble(), nil
}

// Available reports whether the real cross-check is compiled in; tests
// gate on this so they skip cleanly under the default build.
const Available = true

// Registers used by the handful of instruction forms above, exported so
// call sites building a Reference program don't need their own
// dependency on golang-asm's obj/x86 register table.
const (
	RegAX int16 = x86.REG_AX
	RegCX int16 = x86.REG_CX
	RegDX int16 = x86.REG_DX
)
