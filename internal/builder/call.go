package builder

import (
	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/mcir"
)

// EncodeCall implements ABI call lowering by
// driving abi.LowerCall with this Builder as the Emitter. This is the
// one place package builder depends on package abi; abi itself has no
// dependency back on builder, so there is no import cycle.
func (b *Builder) EncodeCall(cc *abi.CallConv, args []abi.PreparedArg, ret abi.NormalizedABIType, retDst mcir.MicroReg, target abi.CallTarget) {
	abi.LowerCall(b, cc, args, ret, retDst, target)
}

var _ abi.Emitter = (*Builder)(nil)
