package passes

import (
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// The four store-eliminating stages of the baseline pipeline. Each stage
// proves a store redundant on its own terms, then asks the survival gate
// what it may actually do with it: delete (feature inactive), keep
// (early stages), or mark volatile (the final global stage).

// mayObserve reports whether executing in could observe memory at addr,
// which makes it a barrier for store-redundancy reasoning.
func mayObserve(gate *pipeline.Gate, in *ir.Instr, addr *ir.Value) bool {
	switch in.Op {
	case ir.OpLoad:
		return !gate.MayAssumeNoAlias(in.Args[0], addr)
	case ir.OpMemSet:
		// A bulk write clobbers rather than reads, but proving that
		// requires range reasoning this stage does not do.
		return !gate.MayAssumeNoAlias(in.Args[0], addr)
	case ir.OpCall, ir.OpICall, ir.OpSetjmp, ir.OpLongjmp:
		return true
	}
	return false
}

// escapes reports whether a pointer value leaves the function: passed to
// a call, stored as data, or reachable through a derived index that does.
func escapes(v *ir.Value) bool {
	for _, u := range v.Uses {
		in := u.User
		switch in.Op {
		case ir.OpCall, ir.OpICall:
			return true
		case ir.OpStore:
			if in.Args[1] == v {
				return true
			}
		case ir.OpIndex:
			if in.Result != nil && escapes(in.Result) {
				return true
			}
		}
	}
	return false
}

// LocalStoreElim removes a store that is overwritten by a later store to
// the same address within the same block with nothing in between that
// could observe the first value.
type LocalStoreElim struct{}

func (p *LocalStoreElim) Name() string { return "Local Store Elimination" }

func (p *LocalStoreElim) Description() string {
	return "Removes block-local stores overwritten before any observation"
}

func (p *LocalStoreElim) Apply(ctx *pipeline.Context) bool {
	changed := false
	for _, fn := range ctx.Module.Functions {
		for _, blk := range fn.Blocks {
			if p.runBlock(ctx, blk) {
				changed = true
			}
		}
	}
	return changed
}

func (p *LocalStoreElim) runBlock(ctx *pipeline.Context, blk *ir.BasicBlock) bool {
	changed := false
	insts := blk.Instructions
	for i := 0; i < len(insts); i++ {
		first := insts[i]
		if first.Op != ir.OpStore {
			continue
		}
		addr := first.Args[0]
		redundant := false
		for j := i + 1; j < len(insts); j++ {
			next := insts[j]
			if next.Op == ir.OpStore && next.Args[0] == addr {
				redundant = true
				break
			}
			if mayObserve(ctx.Gate, next, addr) {
				break
			}
		}
		if !redundant {
			continue
		}
		if ctx.Gate.StoreElimination(pipeline.StageLocal, first) == pipeline.StoreDelete {
			blk.Remove(first)
			insts = blk.Instructions
			i--
			changed = true
		}
	}
	return changed
}

// StoreCombine is the instruction-combining stage's store rule: two
// back-to-back stores through the identical address combine into the
// second one.
type StoreCombine struct{}

func (p *StoreCombine) Name() string { return "Store Combine" }

func (p *StoreCombine) Description() string {
	return "Combines adjacent stores through the same address"
}

func (p *StoreCombine) Apply(ctx *pipeline.Context) bool {
	changed := false
	for _, fn := range ctx.Module.Functions {
		for _, blk := range fn.Blocks {
			for i := 0; i+1 < len(blk.Instructions); i++ {
				first, second := blk.Instructions[i], blk.Instructions[i+1]
				if first.Op != ir.OpStore || second.Op != ir.OpStore {
					continue
				}
				if first.Args[0] != second.Args[0] {
					continue
				}
				if ctx.Gate.StoreElimination(pipeline.StageCombine, first) == pipeline.StoreDelete {
					blk.Remove(first)
					i--
					changed = true
				}
			}
		}
	}
	return changed
}

// MemIntrinsicMerge folds a bulk memory fill that is immediately
// repeated over the same range into the later one.
type MemIntrinsicMerge struct{}

func (p *MemIntrinsicMerge) Name() string { return "Memory Intrinsic Merge" }

func (p *MemIntrinsicMerge) Description() string {
	return "Merges repeated bulk fills over the same range"
}

func (p *MemIntrinsicMerge) Apply(ctx *pipeline.Context) bool {
	changed := false
	for _, fn := range ctx.Module.Functions {
		for _, blk := range fn.Blocks {
			for i := 0; i+1 < len(blk.Instructions); i++ {
				first, second := blk.Instructions[i], blk.Instructions[i+1]
				if first.Op != ir.OpMemSet || second.Op != ir.OpMemSet {
					continue
				}
				if first.Args[0] != second.Args[0] || first.Args[2] != second.Args[2] {
					continue
				}
				if ctx.Gate.StoreElimination(pipeline.StageMemMerge, first) == pipeline.StoreDelete {
					blk.Remove(first)
					i--
					changed = true
				}
			}
		}
	}
	return changed
}

// GlobalDSE is the final dead-store stage: a store into a non-escaping
// stack slot that no load in the function can ever observe is dead. When
// the survival feature is active this stage marks the store volatile
// instead of deleting it, and no later stage may clear that mark.
type GlobalDSE struct{}

func (p *GlobalDSE) Name() string { return "Global Dead Store Elimination" }

func (p *GlobalDSE) Description() string {
	return "Removes or volatile-marks stores no load can observe"
}

func (p *GlobalDSE) Apply(ctx *pipeline.Context) bool {
	changed := false
	for _, fn := range ctx.Module.Functions {
		if p.runFunction(ctx, fn) {
			changed = true
		}
	}
	return changed
}

func (p *GlobalDSE) runFunction(ctx *pipeline.Context, fn *ir.Function) bool {
	changed := false
	fn.ForEachInstr(func(blk *ir.BasicBlock, in *ir.Instr) {
		if in.Op != ir.OpStore {
			return
		}
		addr := in.Args[0]
		root, _ := ir.BaseObject(addr)
		if root == nil || !isSlotAddr(fn, root) || escapes(root) {
			return
		}
		if p.observed(ctx, fn, addr) {
			return
		}
		switch ctx.Gate.StoreElimination(pipeline.StageGlobal, in) {
		case pipeline.StoreDelete:
			blk.Remove(in)
			changed = true
		case pipeline.StoreMarkVolatile:
			in.Attrs.Volatile = true
			changed = true
		}
	})
	return changed
}

func (p *GlobalDSE) observed(ctx *pipeline.Context, fn *ir.Function, addr *ir.Value) bool {
	seen := false
	fn.ForEachInstr(func(_ *ir.BasicBlock, in *ir.Instr) {
		if seen || in.Op != ir.OpLoad {
			return
		}
		if !ctx.Gate.MayAssumeNoAlias(in.Args[0], addr) {
			seen = true
		}
	})
	return seen
}

func isSlotAddr(fn *ir.Function, v *ir.Value) bool {
	for _, s := range fn.Slots {
		if s.Addr == v {
			return true
		}
	}
	return false
}
