package pipeline

import (
	"safegate/internal/feature"
	"safegate/internal/ir"
)

// StoreStage identifies which pipeline stage is asking about a store.
// The gate's answer is stage-specific: early stages skip the deletion
// outright, the final global stage marks the store volatile instead,
// since by then the cost of retaining it is accepted.
type StoreStage int

const (
	StageLocal    StoreStage = iota // local redundant-store elimination
	StageCombine                    // instruction combining
	StageMemMerge                   // memory-intrinsic merging
	StageGlobal                     // global dead-store elimination
)

func (s StoreStage) String() string {
	switch s {
	case StageLocal:
		return "local"
	case StageCombine:
		return "combine"
	case StageMemMerge:
		return "memmerge"
	case StageGlobal:
		return "global"
	}
	return "unknown"
}

// StoreDisposition is the gate's verdict on a redundant store.
type StoreDisposition int

const (
	StoreDelete StoreDisposition = iota
	StoreKeep
	StoreMarkVolatile
)

// Gate is the policy object the optimization stages consult through
// capability hooks instead of hard-wiring class logic into each stage:
// may this store be eliminated here, may this index be simplified, may
// this pointer pair be assumed non-aliasing.
type Gate struct {
	cfg *feature.SafetyClassConfig
}

// NewGate builds the gate for a unit's class configuration.
func NewGate(cfg *feature.SafetyClassConfig) *Gate {
	return &Gate{cfg: cfg}
}

// StoreElimination answers what a stage may do with a store it has
// proven redundant. A store already marked volatile is untouchable at
// every stage; that attribute is never cleared.
func (g *Gate) StoreElimination(stage StoreStage, in *ir.Instr) StoreDisposition {
	if in.Attrs.Volatile {
		return StoreKeep
	}
	if !g.cfg.Enabled(feature.StoreSurvival) {
		return StoreDelete
	}
	if stage == StageGlobal {
		return StoreMarkVolatile
	}
	return StoreKeep
}

// MaySimplifyIndex answers whether an out-of-bounds indexed address may
// be rewritten to a safe in-bounds one. The rewrite changes the meaning
// of programs that rely on out-of-bounds arithmetic, so provenance
// widening disables it. Already-proven in-bounds indexes are always fair
// game.
func (g *Gate) MaySimplifyIndex(in *ir.Instr) bool {
	if in.Attrs.InBounds {
		return true
	}
	return !g.cfg.Enabled(feature.ProvenanceWiden)
}

// MayAssumeNoAlias answers whether two pointers may be treated as
// provably non-overlapping. Under provenance widening only the
// trivially provable case survives: distinct roots with in-bounds
// derivations on both sides.
func (g *Gate) MayAssumeNoAlias(a, b *ir.Value) bool {
	if g.cfg.Enabled(feature.ProvenanceWiden) {
		return ir.WidenedAlias(a, b) == ir.NoAlias
	}
	return ir.Alias(a, b) == ir.NoAlias
}
