package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safegate/internal/feature"
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

// setjmpFunc writes the same slot from two blocks around a save point,
// the shape whose last written value must be observable after a longjmp.
func setjmpFunc(b *ir.Builder) (*ir.Slot, []*ir.Instr) {
	fn := b.NewFunction("f", ir.I32, ir.NewParam("x", ir.I64))
	entry := b.NewBlock("entry")
	counter := b.NewSlot("counter", ir.I64, 1)

	b.SetBlock(entry)
	first := b.Store(counter.Addr, fn.Params[0].Value, 0)
	jmp := b.Setjmp()
	cond := b.Bin(ir.OpNe, jmp, b.Const(0, ir.I32))
	again := &ir.BasicBlock{Label: "again"}
	done := &ir.BasicBlock{Label: "done"}
	fn.Blocks = append(fn.Blocks, again, done)
	b.Br(cond, done, again)

	b.SetBlock(again)
	second := b.Store(counter.Addr, b.Const(1, ir.I64), 0)
	b.Jmp(done)

	b.SetBlock(done)
	b.Ret(jmp)
	return counter, []*ir.Instr{first, second}
}

func TestVolatileTaintMarksCrossBlockWrites(t *testing.T) {
	b := ir.NewBuilder("m")
	slot, stores := setjmpFunc(b)

	ctx := ctxAt(t, 3, b.Module())
	require.True(t, (&VolatileTaint{}).Apply(ctx))

	assert.True(t, slot.Attrs.Volatile)
	for _, st := range stores {
		assert.True(t, st.Attrs.Volatile)
	}
}

func TestVolatileTaintMarksSameBlockWritesAroundSetjmp(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I32, ir.NewParam("x", ir.I64))
	b.NewBlock("entry")
	counter := b.NewSlot("counter", ir.I64, 1)
	first := b.Store(counter.Addr, fn.Params[0].Value, 0)
	jmp := b.Setjmp()
	second := b.Store(counter.Addr, b.Const(1, ir.I64), 0)
	b.Ret(jmp)

	// The taint feature alone, without store survival: the taint must
	// protect the pre-setjmp store on its own.
	reg := feature.NewRegistry()
	require.NoError(t, reg.Register(&feature.Descriptor{
		ID:       feature.VolatileTaint,
		Category: feature.CategoryTransformDisable,
		MaxClass: 3,
	}))
	cfg, err := feature.Resolve(3, reg)
	require.NoError(t, err)
	ctx := pipeline.NewContext(cfg, b.Module())

	require.True(t, (&VolatileTaint{}).Apply(ctx))
	assert.True(t, counter.Attrs.Volatile)
	assert.True(t, first.Attrs.Volatile, "write before the save point")
	assert.True(t, second.Attrs.Volatile, "write after the save point")

	(&GlobalDSE{}).Apply(ctx)
	stores := 0
	fn.ForEachInstr(func(_ *ir.BasicBlock, in *ir.Instr) {
		if in.Op == ir.OpStore {
			stores++
		}
	})
	assert.Equal(t, 2, stores, "a longjmp return path observes the earlier value")
}

func TestVolatileTaintRequiresSetjmp(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", nil, ir.NewParam("x", ir.I64))
	entry := b.NewBlock("entry")
	s := b.NewSlot("s", ir.I64, 1)
	b.Store(s.Addr, fn.Params[0].Value, 0)
	other := &ir.BasicBlock{Label: "other"}
	fn.Blocks = append(fn.Blocks, other)
	b.SetBlock(entry)
	b.Jmp(other)
	b.SetBlock(other)
	b.Store(s.Addr, fn.Params[0].Value, 0)
	b.Ret(nil)

	ctx := ctxAt(t, 3, b.Module())
	assert.False(t, (&VolatileTaint{}).Apply(ctx),
		"cross-block writes without a save point are ordinary stores")
	assert.False(t, s.Attrs.Volatile)
}

func TestVolatileTaintSkipsSingleBlockLocals(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I32, ir.NewParam("x", ir.I64))
	b.NewBlock("entry")
	s := b.NewSlot("s", ir.I64, 1)
	b.Store(s.Addr, fn.Params[0].Value, 0)
	b.Ret(b.Setjmp())

	ctx := ctxAt(t, 3, b.Module())
	assert.False(t, (&VolatileTaint{}).Apply(ctx),
		"a slot written in one block with a private address is not tainted")
	assert.False(t, s.Attrs.Volatile)
}

func TestVolatileTaintMarksEscapingSlots(t *testing.T) {
	b := ir.NewBuilder("m")
	fn := b.NewFunction("f", ir.I32, ir.NewParam("x", ir.I64))
	b.NewBlock("entry")
	s := b.NewSlot("s", ir.I64, 1)
	st := b.Store(s.Addr, fn.Params[0].Value, 0)
	b.Call("leak", nil, s.Addr)
	b.Ret(b.Setjmp())

	ctx := ctxAt(t, 3, b.Module())
	require.True(t, (&VolatileTaint{}).Apply(ctx))
	assert.True(t, s.Attrs.Volatile)
	assert.True(t, st.Attrs.Volatile)
}

func TestVolatileTaintGated(t *testing.T) {
	b := ir.NewBuilder("m")
	slot, _ := setjmpFunc(b)

	ctx := ctxAt(t, 0, b.Module())
	assert.False(t, (&VolatileTaint{}).Apply(ctx))
	assert.False(t, slot.Attrs.Volatile)
}
