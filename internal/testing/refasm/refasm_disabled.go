//go:build !debug_asm

package refasm

// Available is false under the default build: golang-asm is not linked
// in, and Reference's methods are unavailable. Tests gated on Available
// skip rather than fail.
const Available = false

const (
	RegAX int16 = 0
	RegCX int16 = 0
	RegDX int16 = 0
)

// Reference is an unusable placeholder under the default build; New
// always panics so a caller that forgets to check Available
// first fails loudly instead of silently no-op'ing.
type Reference struct{}

func New(sizeHint int) (*Reference, error) {
	panic("refasm: built without -tags debug_asm; check refasm.Available before calling New")
}

func (r *Reference) MOVLRegImm32(reg int16, imm int64) {}
func (r *Reference) ADDQRegReg(dst, src int16)         {}
func (r *Reference) RET()                              {}
func (r *Reference) Assemble() ([]byte, error)         { return nil, nil }
