package passes

import (
	"safegate/internal/diag"
	"safegate/internal/feature"
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// IndexSimplify is the instruction-combining rule for indexed addresses.
// Constant indexes inside their base object get the in-bounds proof
// attached, which is sound under every class. Constant indexes outside
// the object are clamped to a safe in-bounds index in the baseline
// pipeline; that rewrite changes program meaning and is disabled by the
// provenance-widening gate.
type IndexSimplify struct{}

func (p *IndexSimplify) Name() string { return "Index Simplify" }

func (p *IndexSimplify) Description() string {
	return "Proves constant indexes in range and clamps out-of-bounds ones where allowed"
}

func (p *IndexSimplify) Apply(ctx *pipeline.Context) bool {
	warn := ctx.Enabled(feature.WarnUnprovable)
	changed := false
	ctx.Module.ForEachInstr(func(fn *ir.Function, _ *ir.BasicBlock, in *ir.Instr) {
		if in.Op != ir.OpIndex || in.Attrs.InBounds {
			return
		}
		idx, ok := ir.ConstOf(in.Args[1])
		if !ok {
			return
		}
		size, known := objectSize(fn, ctx.Module, in.Args[0])
		if !known {
			return
		}
		if idx >= 0 && idx < size {
			in.Attrs.InBounds = true
			changed = true
			return
		}
		if !ctx.Gate.MaySimplifyIndex(in) {
			if warn {
				ctx.Diags.Warnf(diag.WarnOutOfBoundsIndex, fn.Name,
					"index %d is outside its base object of %d element(s)", idx, size)
			}
			return
		}
		clamped := size - 1
		if idx < 0 {
			clamped = 0
		}
		rewriteConstOperand(in, 1, clamped)
		in.Attrs.InBounds = true
		changed = true
	})
	return changed
}

// objectSize returns the element count of the object a pointer is rooted
// in, when the root is a stack slot of fn or a module global.
func objectSize(fn *ir.Function, m *ir.Module, base *ir.Value) (int64, bool) {
	root, _ := ir.BaseObject(base)
	if root == nil {
		return 0, false
	}
	for _, s := range fn.Slots {
		if s.Addr == root {
			return int64(s.Count), true
		}
	}
	for _, g := range m.Globals {
		if g.Addr == root {
			return 1, true
		}
	}
	return 0, false
}

// rewriteConstOperand swaps operand i for a fresh constant of the same
// type, reusing the old constant's block placement.
func rewriteConstOperand(in *ir.Instr, i int, v int64) {
	old := in.Args[i]
	cins := &ir.Instr{Op: ir.OpConst, ConstVal: v}
	cv := &ir.Value{Name: old.Name + ".clamped", Type: old.Type, Def: cins}
	cins.Result = cv
	in.Block.InsertBefore(in, cins)
	old.RemoveUse(in)
	in.Args[i] = cv
	cv.AddUse(in)
}
