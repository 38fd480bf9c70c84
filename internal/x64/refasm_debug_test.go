//go:build debug_asm

package x64

import (
	"bytes"
	"testing"

	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/testing/refasm"
	"github.com/microlower/mcbackend/internal/testing/require"
)

// TestEncoder_MatchesGolangAsm cross-checks a few representative forms
// against golang-asm: the Go toolchain's own assembler, used here only
// as ground truth for the encoder's emit round-trip property, never
// linked into the default build.
func TestEncoder_MatchesGolangAsm(t *testing.T) {
	e := NewEncoder()
	e.EncodeLoadRegImm(RAX.VReg(), 0x2A, mcir.OpBits32)
	e.EncodeBinaryRegReg(mcir.MicroOpAdd, RCX.VReg(), RDX.VReg(), mcir.OpBits64)
	e.EncodeRet()

	ref, err := refasm.New(64)
	require.NoError(t, err)
	ref.MOVLRegImm32(refasm.RegAX, 0x2A)
	ref.ADDQRegReg(refasm.RegCX, refasm.RegDX)
	ref.RET()

	want, err := ref.Assemble()
	require.NoError(t, err)
	got := e.CopyTo()
	if !bytes.Equal(want, got) {
		t.Fatalf("encoder diverges from golang-asm:\n  want % x\n  got  % x", want, got)
	}
}
