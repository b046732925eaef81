package passes

import (
	"safegate/internal/diag"
	"safegate/internal/feature"
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// Sanitizers inserts the class-1 runtime checks during the code
// generation stage. Every check funnels into the same abort entry point
// at runtime; the checks are individually toggleable through the feature
// table but are only exposed as a block under class 1.
type Sanitizers struct{}

func (p *Sanitizers) Name() string { return "Sanitizer Insertion" }

func (p *Sanitizers) Description() string {
	return "Inserts class-1 runtime checks: float narrowing, null calls, signature hashes, missing returns"
}

func (p *Sanitizers) Apply(ctx *pipeline.Context) bool {
	changed := false
	if ctx.Enabled(feature.SanitizeFloatCast) && p.insertFloatChecks(ctx.Module) {
		changed = true
	}
	if ctx.Enabled(feature.SanitizeNullCall) && p.insertNullChecks(ctx.Module) {
		changed = true
	}
	if ctx.Enabled(feature.SanitizeSigHash) && p.insertSigChecks(ctx.Module) {
		changed = true
	}
	if p.handleMissingReturns(ctx) {
		changed = true
	}
	return changed
}

// insertFloatChecks guards every narrowing conversion between real
// types: trap when the destination cannot represent the source
// magnitude.
func (p *Sanitizers) insertFloatChecks(m *ir.Module) bool {
	changed := false
	m.ForEachInstr(func(_ *ir.Function, blk *ir.BasicBlock, in *ir.Instr) {
		if in.Op != ir.OpFPTrunc {
			return
		}
		blk.InsertBefore(in, &ir.Instr{
			Op:     ir.OpCheck,
			Kind:   ir.CheckFloatOverflow,
			Args:   []*ir.Value{in.Args[0]},
			CastTo: in.CastTo,
		})
		changed = true
	})
	return changed
}

// insertNullChecks guards every call through a computed function
// pointer: trap when the pointer is null.
func (p *Sanitizers) insertNullChecks(m *ir.Module) bool {
	changed := false
	m.ForEachInstr(func(_ *ir.Function, blk *ir.BasicBlock, in *ir.Instr) {
		if in.Op != ir.OpICall {
			return
		}
		blk.InsertBefore(in, &ir.Instr{
			Op:   ir.OpCheck,
			Kind: ir.CheckNonNull,
			Args: []*ir.Value{in.Args[0]},
		})
		changed = true
	})
	return changed
}

// insertSigChecks embeds the structural signature hash at each function
// entry and verifies it at each indirect call site. The hash is purely
// structural so the check works without any type-identity metadata.
func (p *Sanitizers) insertSigChecks(m *ir.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		entry := fn.Entry()
		if entry == nil || hasSigEmbed(entry) {
			continue
		}
		var pos *ir.Instr
		if len(entry.Instructions) > 0 {
			pos = entry.Instructions[0]
		}
		entry.InsertBefore(pos, &ir.Instr{
			Op:   ir.OpCheck,
			Kind: ir.CheckSigHash,
			Sig:  fn.Signature(),
		})
		changed = true
	}
	m.ForEachInstr(func(_ *ir.Function, blk *ir.BasicBlock, in *ir.Instr) {
		if in.Op != ir.OpICall {
			return
		}
		blk.InsertBefore(in, &ir.Instr{
			Op:   ir.OpCheck,
			Kind: ir.CheckSigHash,
			Args: []*ir.Value{in.Args[0]},
			Sig:  in.Sig,
		})
		changed = true
	})
	return changed
}

func hasSigEmbed(blk *ir.BasicBlock) bool {
	for _, in := range blk.Instructions {
		if in.Op == ir.OpCheck && in.Kind == ir.CheckSigHash && len(in.Args) == 0 {
			return true
		}
	}
	return false
}

// handleMissingReturns finds paths that fall off the end of a
// value-returning function. With the return sanitizer active the path
// gets an unconditional trap terminator; otherwise it is diagnosed as a
// warning, which classes 1 and 2 promote to an error.
func (p *Sanitizers) handleMissingReturns(ctx *pipeline.Context) bool {
	trap := ctx.Enabled(feature.SanitizeReturn)
	changed := false
	for _, fn := range ctx.Module.Functions {
		if fn.Return == nil {
			continue
		}
		for _, blk := range fn.Blocks {
			if blk.Terminator != nil {
				continue
			}
			if trap {
				blk.SetTerminator(&ir.Instr{Op: ir.OpTrap, Kind: ir.CheckReturn})
				changed = true
			} else {
				ctx.Diags.Warnf(diag.WarnMissingReturn, fn.Name,
					"control can fall off the end of value-returning function")
			}
		}
	}
	return changed
}
