package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safegate/internal/feature"
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

func ctxAt(t *testing.T, level int, m *ir.Module) *pipeline.Context {
	t.Helper()
	if level == 0 {
		return pipeline.NewContext(nil, m)
	}
	cfg, err := feature.Resolve(level, feature.Default())
	require.NoError(t, err)
	return pipeline.NewContext(cfg, m)
}

func TestGuardInsertionDefersUnprovableShift(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64), ir.NewParam("n", ir.I64))
	b.NewBlock("entry")
	shifted := b.Bin(ir.OpShl, fn.Params[0].Value, fn.Params[1].Value)
	b.Ret(shifted)

	ctx := ctxAt(t, 3, b.Module())
	changed := (&GuardInsertion{}).Apply(ctx)

	require.True(t, changed)
	in := shifted.Def
	assert.Equal(t, ir.OpGuard, in.Op)
	assert.Equal(t, ir.OpShl, in.GuardOp)
}

func TestGuardInsertionKeepsProvableOperations(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64))
	b.NewBlock("entry")
	shifted := b.Bin(ir.OpShl, fn.Params[0].Value, b.Const(3, ir.I64))
	divided := b.Bin(ir.OpSDiv, shifted, b.Const(2, ir.I64))
	b.Ret(divided)

	ctx := ctxAt(t, 3, b.Module())
	(&GuardInsertion{}).Apply(ctx)

	assert.Equal(t, ir.OpShl, shifted.Def.Op, "in-range constant shift stays native")
	assert.Equal(t, ir.OpSDiv, divided.Def.Op, "nonzero constant divisor stays native")
}

func TestGuardInsertionDefersZeroDivisor(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64))
	b.NewBlock("entry")
	q := b.Bin(ir.OpUDiv, fn.Params[0].Value, b.Const(0, ir.I64))
	b.Ret(q)

	ctx := ctxAt(t, 3, b.Module())
	require.True(t, (&GuardInsertion{}).Apply(ctx))
	assert.Equal(t, ir.OpGuard, q.Def.Op)
	assert.Equal(t, ir.OpUDiv, q.Def.GuardOp)
}

func TestGuardInsertionInactiveWithoutClass(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64), ir.NewParam("n", ir.I64))
	b.NewBlock("entry")
	shifted := b.Bin(ir.OpShl, fn.Params[0].Value, fn.Params[1].Value)
	b.Ret(shifted)

	ctx := ctxAt(t, 0, b.Module())
	assert.False(t, (&GuardInsertion{}).Apply(ctx))
	assert.Equal(t, ir.OpShl, shifted.Def.Op)
}

func TestGuardInsertionWarnsAtStrictClasses(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64), ir.NewParam("n", ir.I64))
	b.NewBlock("entry")
	b.Ret(b.Bin(ir.OpAshr, fn.Params[0].Value, fn.Params[1].Value))

	ctx := ctxAt(t, 2, b.Module())
	(&GuardInsertion{}).Apply(ctx)

	require.Len(t, ctx.Diags.Diagnostics(), 1)
	assert.True(t, ctx.Diags.HasErrors(), "class 2 promotes the unprovable-operand warning")

	relaxed := ctxAt(t, 3, b.Module())
	(&GuardInsertion{}).Apply(relaxed)
	assert.Empty(t, relaxed.Diags.Diagnostics(), "class 3 does not carry the diagnostic feature")
}

func TestConstantFoldingNeverTouchesGuards(t *testing.T) {
	b := ir.NewBuilder("m")
	b.NewFunction("f", ir.I64)
	b.NewBlock("entry")
	big := b.Const(1, ir.I64)
	amt := b.Const(80, ir.I64)
	g := &ir.Instr{Op: ir.OpGuard, GuardOp: ir.OpShl, Args: []*ir.Value{big, amt}}
	res := b.Emit(g, ir.I64)
	b.Ret(res)

	ctx := ctxAt(t, 3, b.Module())
	(&ConstantFolding{}).Apply(ctx)
	assert.Equal(t, ir.OpGuard, g.Op, "a guard is not foldable even with constant operands")
}

func TestDCENeverRemovesGuards(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64), ir.NewParam("n", ir.I64))
	b.NewBlock("entry")
	g := &ir.Instr{Op: ir.OpGuard, GuardOp: ir.OpShl, Args: []*ir.Value{fn.Params[0].Value, fn.Params[1].Value}}
	b.Emit(g, ir.I64)
	b.Ret(fn.Params[0].Value)

	ctx := ctxAt(t, 3, b.Module())
	(&DeadCodeElimination{}).Apply(ctx)
	assert.Len(t, fn.Entry().Instructions, 1, "unused guard result must not make the guard dead")
}

func TestGuardRestoreAfterFoldingProvesTheOperand(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64))
	b.NewBlock("entry")
	amt := b.Bin(ir.OpAdd, b.Const(1, ir.I64), b.Const(2, ir.I64))
	shifted := b.Bin(ir.OpShl, fn.Params[0].Value, amt)
	b.Ret(shifted)

	ctx := ctxAt(t, 3, b.Module())
	require.True(t, (&GuardInsertion{}).Apply(ctx), "computed amount is unprovable at insertion time")
	require.Equal(t, ir.OpGuard, shifted.Def.Op)

	require.True(t, (&ConstantFolding{}).Apply(ctx))
	require.True(t, (&GuardRestore{}).Apply(ctx), "folding resolved the amount to 3")
	assert.Equal(t, ir.OpShl, shifted.Def.Op)
	assert.Equal(t, ir.Opcode(""), shifted.Def.GuardOp)
}

func TestGuardRestoreLeavesUnprovenGuards(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64), ir.NewParam("n", ir.I64))
	b.NewBlock("entry")
	shifted := b.Bin(ir.OpShl, fn.Params[0].Value, fn.Params[1].Value)
	b.Ret(shifted)

	ctx := ctxAt(t, 3, b.Module())
	(&GuardInsertion{}).Apply(ctx)
	assert.False(t, (&GuardRestore{}).Apply(ctx))
	assert.Equal(t, ir.OpGuard, shifted.Def.Op)
}

func TestGuardExpansionLowersEverything(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I64, ir.NewParam("x", ir.I64), ir.NewParam("n", ir.I64))
	b.NewBlock("entry")
	shifted := b.Bin(ir.OpShl, fn.Params[0].Value, fn.Params[1].Value)
	quotient := b.Bin(ir.OpSDiv, shifted, fn.Params[1].Value)
	b.Ret(quotient)

	ctx := ctxAt(t, 3, b.Module())
	(&GuardInsertion{}).Apply(ctx)
	require.True(t, (&GuardExpansion{}).Apply(ctx))

	guards := 0
	b.Module().ForEachInstr(func(_ *ir.Function, _ *ir.BasicBlock, in *ir.Instr) {
		if in.Op == ir.OpGuard {
			guards++
		}
	})
	assert.Zero(t, guards, "no guard may survive expansion")
	assert.Equal(t, ir.OpShl, shifted.Def.Op)
	assert.Equal(t, ir.OpSDiv, quotient.Def.Op)
}
