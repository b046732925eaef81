package passes

import (
	"safegate/internal/diag"
	"safegate/internal/feature"
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// Shift and divide preservation. Operations whose second operand cannot
// be proven in range are deferred behind a guard intrinsic so no stage
// can prove "this cannot exhibit undefined behavior" and fold it away.
// The guard survives the whole pipeline; GuardExpansion lowers it back
// to the native opcode after all optimizations have run.

func isShiftOp(op ir.Opcode) bool {
	switch op {
	case ir.OpShl, ir.OpLshr, ir.OpAshr:
		return true
	}
	return false
}

func isDivOp(op ir.Opcode) bool {
	switch op {
	case ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem:
		return true
	}
	return false
}

// shiftAmountInRange proves the shift amount non-negative and smaller
// than the operand width. Only constants are provable here.
func shiftAmountInRange(in *ir.Instr) bool {
	amt, ok := ir.ConstOf(in.Args[1])
	if !ok {
		return false
	}
	width := int64(ir.BitWidth(in.Args[0].Type))
	return amt >= 0 && amt < width
}

// divisorNonZero proves the divisor nonzero.
func divisorNonZero(in *ir.Instr) bool {
	d, ok := ir.ConstOf(in.Args[1])
	return ok && d != 0
}

// GuardInsertion rewrites unprovable shifts and divides into guard
// intrinsic calls. Provably in-range operations stay native.
type GuardInsertion struct{}

func (p *GuardInsertion) Name() string { return "Guard Insertion" }

func (p *GuardInsertion) Description() string {
	return "Defers unprovable shifts and divides behind guard intrinsics"
}

func (p *GuardInsertion) Apply(ctx *pipeline.Context) bool {
	shifts := ctx.Enabled(feature.ShiftGuard)
	divs := ctx.Enabled(feature.DivideGuard)
	warn := ctx.Enabled(feature.WarnUnprovable)
	if !shifts && !divs {
		return false
	}

	changed := false
	ctx.Module.ForEachInstr(func(fn *ir.Function, _ *ir.BasicBlock, in *ir.Instr) {
		switch {
		case isShiftOp(in.Op) && shifts:
			if shiftAmountInRange(in) {
				return
			}
			if warn {
				ctx.Diags.Warnf(diag.WarnUnprovableOperand, fn.Name,
					"shift amount of %s cannot be proven in range", in.Op)
			}
		case isDivOp(in.Op) && divs:
			if divisorNonZero(in) {
				return
			}
			if warn {
				ctx.Diags.Warnf(diag.WarnUnprovableOperand, fn.Name,
					"divisor of %s cannot be proven nonzero", in.Op)
			}
		default:
			return
		}
		in.GuardOp = in.Op
		in.Op = ir.OpGuard
		changed = true
	})
	return changed
}

// GuardRestore is the one optimization permitted on the guard: when a
// later analysis can prove the operand in range after all (typically
// because constant folding resolved it), the guard is rewritten back to
// the native instruction. Everything else leaves guards untouched.
type GuardRestore struct{}

func (p *GuardRestore) Name() string { return "Guard Restore" }

func (p *GuardRestore) Description() string {
	return "Rewrites guards whose operands became provably in-range back to native ops"
}

func (p *GuardRestore) Apply(ctx *pipeline.Context) bool {
	changed := false
	ctx.Module.ForEachInstr(func(_ *ir.Function, _ *ir.BasicBlock, in *ir.Instr) {
		if in.Op != ir.OpGuard {
			return
		}
		restore := false
		if isShiftOp(in.GuardOp) {
			restore = shiftAmountInRange(in)
		} else if isDivOp(in.GuardOp) {
			restore = divisorNonZero(in)
		}
		if restore {
			in.Op = in.GuardOp
			in.GuardOp = ""
			changed = true
		}
	})
	return changed
}

// GuardExpansion runs after every optimization and lowers all remaining
// guards into their native instructions. By construction none of them
// was ever the target of a prove-and-fold transformation; at runtime the
// platform-defined behavior of the native operation occurs, which is the
// design intent.
type GuardExpansion struct{}

func (p *GuardExpansion) Name() string { return "Guard Expansion" }

func (p *GuardExpansion) Description() string {
	return "Expands surviving guard intrinsics back into native instructions"
}

func (p *GuardExpansion) Apply(ctx *pipeline.Context) bool {
	changed := false
	ctx.Module.ForEachInstr(func(_ *ir.Function, _ *ir.BasicBlock, in *ir.Instr) {
		if in.Op == ir.OpGuard {
			in.Op = in.GuardOp
			in.GuardOp = ""
			changed = true
		}
	})
	return changed
}
