// Package mcbackend is a machine-code compiler backend: it takes a
// function built against package builder's micro-instruction IR and
// lowers it, through legalization, register allocation, prolog/epilog
// insertion, an optimization fixed point, and x86-64 encoding, into a
// relocatable byte stream ready for either static linking or direct JIT
// execution.
package mcbackend

import (
	"fmt"

	"github.com/microlower/mcbackend/internal/abi"
	"github.com/microlower/mcbackend/internal/builder"
	"github.com/microlower/mcbackend/internal/passes"
	"github.com/microlower/mcbackend/internal/x64"
)

// Lower runs the full pipeline over b's instruction
// stream for the given calling convention and options, producing the
// emitted bytes and any outstanding relocations. b must not be reused
// afterward: Lower clears its relocation table and the pass manager may
// append further instructions to its arena as part of legalization.
func Lower(b *builder.Builder, cc CallConvKind, opts Options) (*LoweredMicroCode, error) {
	abi.Get(cc) // panics on an unregistered convention before any work is done

	b.ClearCodeRelocations()

	ctx := &passes.Context{
		Builder:                b,
		Encoder:                x64.NewEncoder(),
		CallConvKind:           cc,
		PreservePersistentRegs: true,
		SkipOptimizations:      opts.OptLevel == O0,
	}

	if err := passes.Run(ctx); err != nil {
		return nil, fmt.Errorf("mcbackend: lowering %q: %w", opts.Module, err)
	}

	return &LoweredMicroCode{
		Bytes:           ctx.ResultBytes,
		CodeRelocations: ctx.ResultRelocations,
	}, nil
}
