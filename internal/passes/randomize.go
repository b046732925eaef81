package passes

import (
	"fmt"
	"math/rand/v2"

	"github.com/tliron/commonlog"

	"safegate/internal/feature"
	"safegate/internal/ir"
	"safegate/internal/pipeline"
)

var log = commonlog.GetLogger("safegate.passes")

// Scope selects what the layout randomizer permutes. Scopes combine
// freely: functions only, functions plus globals, locals only, or any
// other union.
type Scope uint

const (
	ScopeFunctions Scope = 1 << iota
	ScopeGlobals
	ScopeLocals
)

// LayoutRandomize emulates static layout randomization late in the
// pipeline, after every class-aware optimization decision. The generator
// is seeded from the caller seed combined with the module content
// fingerprint: the same seed on the same content always yields the same
// permutation, the same seed on different content does not.
type LayoutRandomize struct {
	Scope      Scope
	DummySlots *int // explicit dummy-slot count; nil picks a small seeded one
}

func (p *LayoutRandomize) Name() string { return "Layout Randomization" }

func (p *LayoutRandomize) Description() string {
	return "Deterministically permutes function, global, and stack-slot order"
}

func (p *LayoutRandomize) Apply(ctx *pipeline.Context) bool {
	if !ctx.Enabled(feature.LayoutRandomize) || p.Scope == 0 {
		return false
	}
	var seed uint64
	if ctx.Config != nil && ctx.Config.RandomSeed != nil {
		seed = *ctx.Config.RandomSeed
	}
	m := ctx.Module
	fp := ir.Fingerprint(m)
	log.Debugf("layout seed=%d fingerprint=%x", seed, fp)
	rng := rand.New(rand.NewPCG(seed, fp))

	changed := false
	if p.Scope&ScopeLocals != 0 {
		for _, fn := range m.Functions {
			if p.shuffleSlots(rng, fn) {
				changed = true
			}
		}
	}
	if p.Scope&ScopeGlobals != 0 && len(m.Globals) > 1 {
		rng.Shuffle(len(m.Globals), func(i, j int) {
			m.Globals[i], m.Globals[j] = m.Globals[j], m.Globals[i]
		})
		changed = true
	}
	if p.Scope&ScopeFunctions != 0 && len(m.Functions) > 1 {
		rng.Shuffle(len(m.Functions), func(i, j int) {
			m.Functions[i], m.Functions[j] = m.Functions[j], m.Functions[i]
		})
		changed = true
	}
	return changed
}

// shuffleSlots interleaves dummy slots among the function's real locals
// and permutes the combined order. Dummy slots are never referenced;
// they exist to perturb stack offsets.
func (p *LayoutRandomize) shuffleSlots(rng *rand.Rand, fn *ir.Function) bool {
	if len(fn.Slots) == 0 {
		return false
	}
	count := 1 + rng.IntN(4)
	if p.DummySlots != nil {
		count = *p.DummySlots
	}
	for i := 0; i < count; i++ {
		s := &ir.Slot{
			Name:  fmt.Sprintf("pad%d", i),
			Elem:  ir.I8,
			Count: 1 + rng.IntN(8),
			Dummy: true,
		}
		s.Addr = &ir.Value{Name: s.Name, Type: ir.Ptr(s.Elem)}
		fn.Slots = append(fn.Slots, s)
	}
	rng.Shuffle(len(fn.Slots), func(i, j int) {
		fn.Slots[i], fn.Slots[j] = fn.Slots[j], fn.Slots[i]
	})
	return true
}
