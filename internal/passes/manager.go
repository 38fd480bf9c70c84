package passes

import "fmt"

// maxOptimizationRounds bounds the peephole fixed-point loop to a
// run-until-stable-or-bounded shape.
const maxOptimizationRounds = 8

// optimizationPass is one fixed-point peephole rewrite. It reports
// whether it changed anything, so Run can detect a stable fixed point
// without an extra round of no-op work.
type optimizationPass struct {
	name string
	run  func(ctx *Context) (changed bool, err error)
}

// optimizationPasses is the fixed-point loop's pass list, in the order
// each round runs them.
var optimizationPasses = []optimizationPass{
	{"copy-prop", CopyProp},
	{"dce", DCE},
	{"combine", Combine},
	{"strength-reduce", StrengthReduce},
	{"load-store-forward", LoadStoreForward},
	{"branch-fold", BranchFold},
	{"cfg-simplify", CFGSimplify},
}

// Run drives the whole pipeline over one function: legalize, register
// allocation, prolog/epilog, the bounded optimization fixed point, then
// emit: an ordered list of passes, with the peephole subset re-run to
// a fixed point, followed by a distinct regalloc/prolog-epilog/encode
// split.
func Run(ctx *Context) error {
	ctx.Order = ctx.storage().View()

	if err := Legalize(ctx); err != nil {
		return fmt.Errorf("legalize: %w", err)
	}
	if err := RegAlloc(ctx); err != nil {
		return fmt.Errorf("regalloc: %w", err)
	}
	if err := PrologEpilog(ctx); err != nil {
		return fmt.Errorf("prolog/epilog: %w", err)
	}

	if !ctx.SkipOptimizations {
		for round := 0; round < maxOptimizationRounds; round++ {
			anyChanged := false
			for _, p := range optimizationPasses {
				changed, err := p.run(ctx)
				if err != nil {
					return fmt.Errorf("%s: %w", p.name, err)
				}
				anyChanged = anyChanged || changed
			}
			if !anyChanged {
				break
			}
		}
	}

	if err := Emit(ctx); err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	return nil
}
