package feature

import (
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry is the process-wide table of gated features. It is populated
// once at initialization and read-only thereafter, which makes it safe
// to share across concurrently compiled units.
type Registry struct {
	byID  map[string]*Descriptor
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Descriptor)}
}

// Register adds a feature descriptor. It fails with DuplicateFeatureError
// when the identifier already exists and BadDescriptorError when the
// class bounds are malformed.
func (r *Registry) Register(d *Descriptor) error {
	if _, ok := r.byID[d.ID]; ok {
		return &DuplicateFeatureError{ID: d.ID}
	}
	if d.MaxClass < 1 || d.MaxClass > 3 {
		return &BadDescriptorError{ID: d.ID, Reason: fmt.Sprintf("maxClass %d outside 1..3", d.MaxClass)}
	}
	if d.IntroducedAt == 0 {
		d.IntroducedAt = 1
	}
	if d.IntroducedAt != 1 {
		// Anything else would let a weaker class carry a feature a
		// stricter class lacks, breaking class nesting.
		return &BadDescriptorError{ID: d.ID, Reason: fmt.Sprintf("introducedAtClass %d breaks class nesting, must be 1", d.IntroducedAt)}
	}
	r.byID[d.ID] = d
	r.order = append(r.order, d.ID)
	return nil
}

// Lookup returns the descriptor for id, or UnknownFeatureError.
func (r *Registry) Lookup(id string) (*Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, &UnknownFeatureError{ID: id}
	}
	return d, nil
}

// Features returns all descriptors in registration order.
func (r *Registry) Features() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// tableEntry is the on-disk record shape of the declarative table.
type tableEntry struct {
	ID           string `yaml:"id"`
	Flag         string `yaml:"flag"`
	Category     string `yaml:"category"`
	IntroducedAt int    `yaml:"introducedAtClass"`
	MaxClass     int    `yaml:"maxClass"`
	Rationale    string `yaml:"rationale"`
}

// LoadTable reads a declarative feature table and registers every entry.
// The format is a YAML list of records: id, flag, category,
// introducedAtClass, maxClass, rationale.
func (r *Registry) LoadTable(src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("reading feature table: %w", err)
	}
	var entries []tableEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing feature table: %w", err)
	}
	for _, e := range entries {
		if err := r.Register(&Descriptor{
			ID:           e.ID,
			Flag:         e.Flag,
			Category:     Category(e.Category),
			IntroducedAt: e.IntroducedAt,
			MaxClass:     e.MaxClass,
			Rationale:    e.Rationale,
		}); err != nil {
			return err
		}
	}
	return nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in registry, initialized once per process.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, d := range builtinTable() {
			if err := defaultRegistry.Register(d); err != nil {
				// The built-in table is part of the binary; a bad entry
				// is unrecoverable misconfiguration.
				panic(err)
			}
		}
	})
	return defaultRegistry
}

// builtinTable is the compiled-in equivalent of the declarative table.
// Transform disables hold at every class, hardened code generation at
// classes 1-2, and the sanitizer block only at class 1.
func builtinTable() []*Descriptor {
	return []*Descriptor{
		{ID: NoStrictAliasing, Flag: "-fno-strict-aliasing", Category: CategoryTransformDisable, MaxClass: 3,
			Rationale: "type-punned access must not be folded away"},
		{ID: ShiftGuard, Flag: "-fsafe-shift", Category: CategoryTransformDisable, MaxClass: 3,
			Rationale: "out-of-range shifts keep platform semantics instead of feeding UB-based folding"},
		{ID: DivideGuard, Flag: "-fsafe-div", Category: CategoryTransformDisable, MaxClass: 3,
			Rationale: "possible division by zero must reach the hardware, not the optimizer"},
		{ID: StoreSurvival, Flag: "-fpreserve-stores", Category: CategoryTransformDisable, MaxClass: 3,
			Rationale: "writes that clear sensitive memory survive dead-store elimination"},
		{ID: VolatileTaint, Flag: "-fsetjmp-volatile", Category: CategoryTransformDisable, MaxClass: 3,
			Rationale: "locals live across setjmp keep their last written value on the longjmp path"},
		{ID: AlignRelax, Flag: "-fno-assume-alignment", Category: CategoryTransformDisable, MaxClass: 2,
			Rationale: "underaligned pointers take the unaligned-access path instead of faulting"},
		{ID: ProvenanceWiden, Flag: "-fwide-provenance", Category: CategoryTransformDisable, MaxClass: 2,
			Rationale: "out-of-bounds pointer arithmetic occurs in real code; aliasing stays conservative"},
		{ID: LayoutRandomize, Flag: "-frandomize-layout", Category: CategoryRandomization, MaxClass: 2,
			Rationale: "static layout randomization where the loader provides none"},
		{ID: WarnUnprovable, Flag: "-Wunprovable-operands", Category: CategoryDiagnostic, MaxClass: 2,
			Rationale: "surface operands the range prover gave up on"},
		{ID: SanitizeFloatCast, Flag: "-fsanitize=float-cast-overflow", Category: CategorySanitizer, MaxClass: 1,
			Rationale: "trap when a narrowing conversion cannot represent the source magnitude"},
		{ID: SanitizeNullCall, Flag: "-fsanitize=null-call", Category: CategorySanitizer, MaxClass: 1,
			Rationale: "trap before any call through a null function pointer"},
		{ID: SanitizeSigHash, Flag: "-fsanitize=function", Category: CategorySanitizer, MaxClass: 1,
			Rationale: "trap on indirect calls whose assumed signature hash mismatches the target"},
		{ID: SanitizeReturn, Flag: "-fsanitize=return", Category: CategorySanitizer, MaxClass: 1,
			Rationale: "trap when a value-returning function falls off the end"},
	}
}
