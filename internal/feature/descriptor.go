package feature

// Category classifies what a feature controls.
type Category string

const (
	CategoryTransformDisable Category = "transform-disable"
	CategoryDiagnostic       Category = "diagnostic"
	CategorySanitizer        Category = "sanitizer"
	CategoryRandomization    Category = "randomization-parameter"
)

// Descriptor is an immutable description of one gated feature. MaxClass
// is the weakest (largest-numbered) class at which the feature is still
// active; since class 1 is strictest and each class is a superset of the
// next weaker one, a feature is active for every class from IntroducedAt
// through MaxClass.
type Descriptor struct {
	ID           string
	Flag         string // driver-level spelling, e.g. "-fno-strict-aliasing"
	Category     Category
	IntroducedAt int // strictest class at which the feature appears
	MaxClass     int // weakest class at which the feature is still active
	Rationale    string
}

// ActiveAt reports whether the feature is active at the given class.
func (d *Descriptor) ActiveAt(level int) bool {
	return level >= d.IntroducedAt && level <= d.MaxClass
}

// Well-known feature identifiers. The pipeline queries these; the table
// binds them to driver flags and class bounds.
const (
	NoStrictAliasing  = "no-strict-aliasing"
	ShiftGuard        = "shift-guard"
	DivideGuard       = "divide-guard"
	StoreSurvival     = "store-survival"
	AlignRelax        = "align-relax"
	ProvenanceWiden   = "provenance-widen"
	VolatileTaint     = "volatile-setjmp-taint"
	LayoutRandomize   = "layout-randomize"
	WarnUnprovable    = "warn-unprovable-operands"
	SanitizeFloatCast = "sanitize-float-cast-overflow"
	SanitizeNullCall  = "sanitize-null-call"
	SanitizeSigHash   = "sanitize-function-signature"
	SanitizeReturn    = "sanitize-return"
)
