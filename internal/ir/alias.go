package ir

// Alias analysis over the abstract IR. The baseline answers are the
// optimistic ones an optimizer wants; the provenance widening in the
// pipeline layer removes the unsound ones.

// AliasResult is the answer for a pointer pair.
type AliasResult int

const (
	NoAlias AliasResult = iota
	MayAlias
	MustAlias
)

func (r AliasResult) String() string {
	switch r {
	case NoAlias:
		return "no-alias"
	case MayAlias:
		return "may-alias"
	case MustAlias:
		return "must-alias"
	}
	return "unknown"
}

// BaseObject walks indexed-address computations back to the root value a
// pointer derives from. The second result reports whether every step on
// the way carried an in-bounds proof, i.e. whether the pointer provably
// stays inside its source object.
func BaseObject(v *Value) (*Value, bool) {
	inBounds := true
	for v != nil && v.Def != nil && v.Def.Op == OpIndex {
		if !v.Def.Attrs.InBounds {
			inBounds = false
		}
		v = v.Def.Args[0]
	}
	// A root address (slot, global, parameter) is trivially inside its
	// own object. A pointer of unknown origin is not provable.
	if v != nil && v.Def != nil {
		inBounds = false
	}
	return v, inBounds
}

// Alias is the baseline decision function: pointers rooted in different
// objects are optimistically disjoint, and only identical values are
// must-alias.
func Alias(a, b *Value) AliasResult {
	if a == b {
		return MustAlias
	}
	ra, _ := BaseObject(a)
	rb, _ := BaseObject(b)
	if ra == nil || rb == nil {
		return MayAlias
	}
	if ra != rb {
		return NoAlias
	}
	return MayAlias
}

// WidenedAlias is the conservative decision function used when pointer
// provenance widening is active. A pointer whose derivation cannot be
// proven in-bounds may alias anything; a pair of provably in-bounds
// pointers rooted in distinct objects keeps its sound no-alias answer.
func WidenedAlias(a, b *Value) AliasResult {
	if a == b {
		return MustAlias
	}
	ra, inA := BaseObject(a)
	rb, inB := BaseObject(b)
	if ra == nil || rb == nil {
		return MayAlias
	}
	if ra != rb {
		if inA && inB {
			return NoAlias
		}
		return MayAlias
	}
	return MayAlias
}
