package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safegate/internal/ir"
)

func TestConstantFoldingArithmetic(t *testing.T) {
	cases := []struct {
		op    ir.Opcode
		left  int64
		right int64
		want  int64
	}{
		{ir.OpAdd, 2, 3, 5},
		{ir.OpSub, 10, 4, 6},
		{ir.OpMul, 6, 7, 42},
		{ir.OpAnd, 0b1100, 0b1010, 0b1000},
		{ir.OpOr, 0b1100, 0b1010, 0b1110},
		{ir.OpXor, 0b1100, 0b1010, 0b0110},
		{ir.OpShl, 1, 4, 16},
		{ir.OpLshr, -1, 60, 15},
		{ir.OpAshr, -16, 2, -4},
		{ir.OpSDiv, -9, 3, -3},
		{ir.OpUDiv, 9, 3, 3},
		{ir.OpSRem, -9, 4, -1},
		{ir.OpURem, 9, 4, 1},
		{ir.OpEq, 3, 3, 1},
		{ir.OpLt, 2, 3, 1},
		{ir.OpGe, 2, 3, 0},
	}
	for _, tc := range cases {
		b := ir.NewBuilder("m")
		b.NewFunction("f", ir.I64)
		b.NewBlock("entry")
		res := b.Bin(tc.op, b.Const(tc.left, ir.I64), b.Const(tc.right, ir.I64))
		b.Ret(res)

		ctx := ctxAt(t, 0, b.Module())
		require.True(t, (&ConstantFolding{}).Apply(ctx), "%s should fold", tc.op)
		assert.Equal(t, ir.OpConst, res.Def.Op, "%s", tc.op)
		assert.Equal(t, tc.want, res.Def.ConstVal, "%s %d %d", tc.op, tc.left, tc.right)
	}
}

func TestConstantFoldingRefusesPlatformDefinedCases(t *testing.T) {
	cases := []struct {
		name  string
		op    ir.Opcode
		right int64
	}{
		{"shift amount at width", ir.OpShl, 64},
		{"negative shift amount", ir.OpLshr, -1},
		{"signed divide by zero", ir.OpSDiv, 0},
		{"unsigned remainder by zero", ir.OpURem, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ir.NewBuilder("m")
			b.NewFunction("f", ir.I64)
			b.NewBlock("entry")
			res := b.Bin(tc.op, b.Const(5, ir.I64), b.Const(tc.right, ir.I64))
			b.Ret(res)

			ctx := ctxAt(t, 0, b.Module())
			(&ConstantFolding{}).Apply(ctx)
			assert.Equal(t, tc.op, res.Def.Op, "the optimizer must not assume anything here")
		})
	}
}

func TestConstantFoldingSkipsNonConstOperands(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64))
	b.NewBlock("entry")
	res := b.Bin(ir.OpAdd, fn.Params[0].Value, b.Const(1, ir.I64))
	b.Ret(res)

	ctx := ctxAt(t, 0, b.Module())
	assert.False(t, (&ConstantFolding{}).Apply(ctx))
	assert.Equal(t, ir.OpAdd, res.Def.Op)
}

func TestConstantFoldingDropsOperandUses(t *testing.T) {
	b := ir.NewBuilder("m")
	b.NewFunction("f", ir.I64)
	b.NewBlock("entry")
	left := b.Const(2, ir.I64)
	right := b.Const(3, ir.I64)
	res := b.Bin(ir.OpAdd, left, right)
	b.Ret(res)

	ctx := ctxAt(t, 0, b.Module())
	require.True(t, (&ConstantFolding{}).Apply(ctx))
	assert.Empty(t, left.Uses, "folded operand should become dead")
	assert.Empty(t, right.Uses)

	// The now-unused source constants are DCE fodder.
	(&DeadCodeElimination{}).Apply(ctx)
	fn := b.Module().Function("f")
	assert.Len(t, fn.Entry().Instructions, 1, "only the folded constant should remain")
}
