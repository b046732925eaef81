package passes

import (
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// DeadCodeElimination removes unreachable basic blocks and instructions
// whose results are never used. Stores are not its business; those are
// handled by the store-elimination stages so the survival gate sees
// every deletion decision.
type DeadCodeElimination struct{}

func (p *DeadCodeElimination) Name() string { return "Dead Code Elimination" }

func (p *DeadCodeElimination) Description() string {
	return "Removes unreachable blocks and unused side-effect-free instructions"
}

func (p *DeadCodeElimination) Apply(ctx *pipeline.Context) bool {
	changed := false
	for _, fn := range ctx.Module.Functions {
		if p.pruneBlocks(fn) {
			changed = true
		}
		if p.pruneInstructions(fn) {
			changed = true
		}
	}
	return changed
}

func (p *DeadCodeElimination) pruneBlocks(fn *ir.Function) bool {
	if len(fn.Blocks) == 0 {
		return false
	}
	reachable := make(map[*ir.BasicBlock]bool)
	p.markReachable(fn.Entry(), reachable)

	kept := fn.Blocks[:0]
	changed := false
	for _, blk := range fn.Blocks {
		if reachable[blk] {
			kept = append(kept, blk)
			continue
		}
		for _, in := range blk.Instructions {
			for _, a := range in.Args {
				a.RemoveUse(in)
			}
		}
		changed = true
	}
	fn.Blocks = kept
	return changed
}

func (p *DeadCodeElimination) markReachable(blk *ir.BasicBlock, reachable map[*ir.BasicBlock]bool) {
	if blk == nil || reachable[blk] {
		return
	}
	reachable[blk] = true
	if blk.Terminator != nil {
		for _, t := range blk.Terminator.Targets {
			p.markReachable(t, reachable)
		}
	}
}

func (p *DeadCodeElimination) pruneInstructions(fn *ir.Function) bool {
	changed := false
	// Iterate to a fixed point so chains of dead values disappear.
	for {
		removedAny := false
		for _, blk := range fn.Blocks {
			for _, in := range append([]*ir.Instr(nil), blk.Instructions...) {
				if in.HasSideEffects() || in.Result == nil {
					continue
				}
				if len(in.Result.Uses) > 0 {
					continue
				}
				blk.Remove(in)
				removedAny = true
			}
		}
		if !removedAny {
			break
		}
		changed = true
	}
	return changed
}
