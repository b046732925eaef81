package passes

import (
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// ConstantFolding evaluates operations with constant operands at compile
// time. Shifts fold only when the amount is in range and divides only
// when the divisor is nonzero; anything else has platform-defined
// behavior that is not the optimizer's to assume. Guard intrinsics are
// never folded, which is the entire point of the deferral.
type ConstantFolding struct{}

func (p *ConstantFolding) Name() string { return "Constant Folding" }

func (p *ConstantFolding) Description() string {
	return "Evaluates constant expressions at compile time"
}

func (p *ConstantFolding) Apply(ctx *pipeline.Context) bool {
	changed := false
	ctx.Module.ForEachInstr(func(_ *ir.Function, _ *ir.BasicBlock, in *ir.Instr) {
		if in.Result == nil || len(in.Args) != 2 {
			return
		}
		left, lok := ir.ConstOf(in.Args[0])
		right, rok := ir.ConstOf(in.Args[1])
		if !lok || !rok {
			return
		}
		result, ok := foldBinary(in.Op, left, right, ir.BitWidth(in.Args[0].Type))
		if !ok {
			return
		}
		for _, a := range in.Args {
			a.RemoveUse(in)
		}
		in.Op = ir.OpConst
		in.ConstVal = result
		in.Args = nil
		changed = true
	})
	return changed
}

func foldBinary(op ir.Opcode, left, right int64, width int) (int64, bool) {
	switch op {
	case ir.OpAdd:
		return left + right, true
	case ir.OpSub:
		return left - right, true
	case ir.OpMul:
		return left * right, true
	case ir.OpAnd:
		return left & right, true
	case ir.OpOr:
		return left | right, true
	case ir.OpXor:
		return left ^ right, true
	case ir.OpShl:
		if right >= 0 && right < int64(width) {
			return left << uint64(right), true
		}
	case ir.OpLshr:
		if right >= 0 && right < int64(width) {
			return int64(uint64(left) >> uint64(right)), true
		}
	case ir.OpAshr:
		if right >= 0 && right < int64(width) {
			return left >> uint64(right), true
		}
	case ir.OpSDiv:
		if right != 0 {
			return left / right, true
		}
	case ir.OpUDiv:
		if right != 0 {
			return int64(uint64(left) / uint64(right)), true
		}
	case ir.OpSRem:
		if right != 0 {
			return left % right, true
		}
	case ir.OpURem:
		if right != 0 {
			return int64(uint64(left) % uint64(right)), true
		}
	case ir.OpEq:
		return boolToInt(left == right), true
	case ir.OpNe:
		return boolToInt(left != right), true
	case ir.OpLt:
		return boolToInt(left < right), true
	case ir.OpLe:
		return boolToInt(left <= right), true
	case ir.OpGt:
		return boolToInt(left > right), true
	case ir.OpGe:
		return boolToInt(left >= right), true
	}
	return 0, false
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
