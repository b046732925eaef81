package passes

import (
	"safegate/internal/feature"
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// AlignmentRelax strips explicit alignment hints from loads, stores, and
// pointer-typed call arguments before optimization runs, forcing later
// stages onto unaligned-access code paths. It applies uniformly to the
// whole module and re-running it on a relaxed module is a no-op.
type AlignmentRelax struct{}

func (p *AlignmentRelax) Name() string { return "Alignment Relaxation" }

func (p *AlignmentRelax) Description() string {
	return "Strips alignment hints so codegen cannot assume aligned access"
}

func (p *AlignmentRelax) Apply(ctx *pipeline.Context) bool {
	if !ctx.Enabled(feature.AlignRelax) {
		return false
	}
	changed := false
	ctx.Module.ForEachInstr(func(_ *ir.Function, _ *ir.BasicBlock, in *ir.Instr) {
		switch in.Op {
		case ir.OpLoad, ir.OpStore, ir.OpMemSet, ir.OpCall, ir.OpICall:
			if in.Attrs.Align != 0 {
				in.Attrs.Align = 0
				changed = true
			}
		}
	})
	return changed
}
