package passes_test

import (
	"testing"

	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/mcir"
	"github.com/microlower/mcbackend/internal/passes"
	"github.com/microlower/mcbackend/internal/testing/require"
)

func TestCFGSimplify_DropsFallthroughJump(t *testing.T) {
	b := builder.New()
	j := b.EncodeJump(mcir.CondEqual, mcir.OpBits32, 0)
	l := b.EncodeLabel()
	b.EncodePatchJump(j, l)
	ctx := newCtx(b)

	changed, err := passes.CFGSimplify(ctx)
	require.NoError(t, err)
	require.True(t, changed, "jump to the immediately-following label is a no-op")
	require.True(t, b.Storage().Instr(j).Dead(), "Dead")
}

func TestCFGSimplify_DropsCodeAfterUnconditionalTerminator(t *testing.T) {
	b := builder.New()
	j := b.EncodeJump(mcir.CondEqual, mcir.OpBits32, 0)
	b.EncodeRet()
	dead := b.EncodeNop()
	l := b.EncodeLabel()
	b.EncodePatchJump(j, l)
	afterLabel := b.EncodeNop()
	ctx := newCtx(b)

	changed, err := passes.CFGSimplify(ctx)
	require.NoError(t, err)
	require.True(t, changed, "expected unreachable code removed")
	require.True(t, b.Storage().Instr(dead).Dead(), "Dead")
	require.False(t, b.Storage().Instr(l).Dead(), "a label resets reachability")
	require.False(t, b.Storage().Instr(afterLabel).Dead(), "Dead")
}

func TestCFGSimplify_DropsUnreferencedLabel(t *testing.T) {
	b := builder.New()
	l := b.EncodeLabel()
	b.EncodeRet()
	ctx := newCtx(b)

	changed, err := passes.CFGSimplify(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, b.Storage().Instr(l).Dead(), "Dead")
}

func TestCFGSimplify_KeepsReferencedLabel(t *testing.T) {
	b := builder.New()
	j := b.EncodeJump(mcir.CondEqual, mcir.OpBits32, 0)
	b.EncodeNop()
	l := b.EncodeLabel()
	b.EncodePatchJump(j, l)
	ctx := newCtx(b)

	_, err := passes.CFGSimplify(ctx)
	require.NoError(t, err)
	require.False(t, b.Storage().Instr(l).Dead(), "a label referenced by a jump must survive")
}
