package passes

import (
	"safegate/internal/feature"
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// VolatileTaint handles functions containing a setjmp-style save point.
// A longjmp back into the function observes whatever the tainted locals
// held at the time of the jump, so stores into any slot written both
// before and after the save point, written in more than one block, or
// whose address escapes, must survive every elimination stage. The pass
// marks those slots and all stores into them volatile.
type VolatileTaint struct{}

func (p *VolatileTaint) Name() string { return "Volatile Setjmp Taint" }

func (p *VolatileTaint) Description() string {
	return "Marks locals live across setjmp as volatile"
}

func (p *VolatileTaint) Apply(ctx *pipeline.Context) bool {
	if !ctx.Enabled(feature.VolatileTaint) {
		return false
	}
	changed := false
	for _, fn := range ctx.Module.Functions {
		if !containsSetjmp(fn) {
			continue
		}
		tainted := p.taintedSlots(fn)
		if len(tainted) == 0 {
			continue
		}
		for s := range tainted {
			if !s.Attrs.Volatile {
				s.Attrs.Volatile = true
				changed = true
			}
		}
		fn.ForEachInstr(func(_ *ir.BasicBlock, in *ir.Instr) {
			if in.Op != ir.OpStore || in.Attrs.Volatile {
				return
			}
			root, _ := ir.BaseObject(in.Args[0])
			for s := range tainted {
				if s.Addr == root {
					in.Attrs.Volatile = true
					changed = true
					return
				}
			}
		})
	}
	return changed
}

func containsSetjmp(fn *ir.Function) bool {
	found := false
	fn.ForEachInstr(func(_ *ir.BasicBlock, in *ir.Instr) {
		if in.Op == ir.OpSetjmp {
			found = true
		}
	})
	return found
}

// taintedSlots collects the slots whose last written value is observable
// on a longjmp return path: written both before and after a setjmp in
// the same block, written from more than one block, or with an escaping
// address.
func (p *VolatileTaint) taintedSlots(fn *ir.Function) map[*ir.Slot]bool {
	writtenIn := make(map[*ir.Slot]map[*ir.BasicBlock]bool)
	preJump := make(map[*ir.Slot]bool)
	postJump := make(map[*ir.Slot]bool)
	for _, blk := range fn.Blocks {
		afterJump := false
		for _, in := range blk.Instructions {
			if in.Op == ir.OpSetjmp {
				afterJump = true
				continue
			}
			if in.Op != ir.OpStore && in.Op != ir.OpMemSet {
				continue
			}
			root, _ := ir.BaseObject(in.Args[0])
			for _, s := range fn.Slots {
				if s.Addr != root {
					continue
				}
				if writtenIn[s] == nil {
					writtenIn[s] = make(map[*ir.BasicBlock]bool)
				}
				writtenIn[s][blk] = true
				if afterJump {
					postJump[s] = true
				} else {
					preJump[s] = true
				}
			}
		}
	}

	tainted := make(map[*ir.Slot]bool)
	for _, s := range fn.Slots {
		if len(writtenIn[s]) > 1 || (preJump[s] && postJump[s]) || escapes(s.Addr) {
			tainted[s] = true
		}
	}
	return tainted
}
