package passes

import (
	"safegate/internal/pipeline"
)

// Options configures the parts of the default pipeline that take caller
// input: the layout randomizer's scope and dummy-slot count.
type Options struct {
	RandomizeScope Scope
	DummySlots     *int
}

// NewDefaultPipeline schedules the full pass sequence in its fixed
// order. Guard insertion runs before any optimization; the randomizer
// and guard expansion run at the end, after every class-aware decision
// has been made.
func NewDefaultPipeline(opts Options) *pipeline.Pipeline {
	p := pipeline.NewPipeline()

	p.AddPass(&GuardInsertion{})
	p.AddPass(&VolatileTaint{})
	p.AddPass(&AlignmentRelax{})

	p.AddPass(&ConstantFolding{})
	p.AddPass(&GuardRestore{})
	p.AddPass(&IndexSimplify{})
	p.AddPass(&StoreCombine{})
	p.AddPass(&LocalStoreElim{})
	p.AddPass(&MemIntrinsicMerge{})
	p.AddPass(&DeadCodeElimination{})
	p.AddPass(&GlobalDSE{})

	p.AddPass(&Sanitizers{})
	p.AddPass(&LayoutRandomize{Scope: opts.RandomizeScope, DummySlots: opts.DummySlots})
	p.AddPass(&GuardExpansion{})

	return p
}
