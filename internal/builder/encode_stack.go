package builder

import "github.com/microlower/mcbackend/internal/mcir"

// EncodePush appends a push of reg.
func (b *Builder) EncodePush(reg mcir.MicroReg) mcir.Ref {
	return b.append(mcir.OpPush, mcir.EmitFlagNone, mcir.OperandReg(reg))
}

// EncodePop appends a pop into reg.
func (b *Builder) EncodePop(reg mcir.MicroReg) mcir.Ref {
	return b.append(mcir.OpPop, mcir.EmitFlagNone, mcir.OperandReg(reg))
}
