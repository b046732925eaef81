package feature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(&Descriptor{
		ID:       "test-feature",
		Flag:     "-ftest",
		Category: CategoryTransformDisable,
		MaxClass: 2,
	})
	require.NoError(t, err)

	d, err := reg.Lookup("test-feature")
	require.NoError(t, err)
	assert.Equal(t, "-ftest", d.Flag)
	assert.Equal(t, 1, d.IntroducedAt, "omitted introducedAtClass should default to 1")
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Descriptor{ID: "dup", MaxClass: 1}))

	err := reg.Register(&Descriptor{ID: "dup", MaxClass: 3})
	var dupErr *DuplicateFeatureError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "dup", dupErr.ID)
}

func TestRegisterRejectsBadClassBounds(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(&Descriptor{ID: "too-weak", MaxClass: 4})
	var badErr *BadDescriptorError
	assert.ErrorAs(t, err, &badErr)

	err = reg.Register(&Descriptor{ID: "late-intro", IntroducedAt: 2, MaxClass: 3})
	assert.ErrorAs(t, err, &badErr, "introducedAtClass above 1 would break class nesting")
}

func TestLookupUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Lookup("no-such-feature")
	var unknown *UnknownFeatureError
	assert.ErrorAs(t, err, &unknown)
}

func TestFeaturesPreserveRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Register(&Descriptor{ID: id, MaxClass: 3}))
	}

	var ids []string
	for _, d := range reg.Features() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestLoadTable(t *testing.T) {
	table := `
- id: no-strict-aliasing
  flag: -fno-strict-aliasing
  category: transform-disable
  maxClass: 3
  rationale: type-punned access must not be folded away
- id: sanitize-return
  flag: -fsanitize=return
  category: sanitizer
  maxClass: 1
`
	reg := NewRegistry()
	require.NoError(t, reg.LoadTable(strings.NewReader(table)))

	d, err := reg.Lookup("no-strict-aliasing")
	require.NoError(t, err)
	assert.Equal(t, 3, d.MaxClass)
	assert.Equal(t, CategoryTransformDisable, d.Category)

	d, err = reg.Lookup("sanitize-return")
	require.NoError(t, err)
	assert.Equal(t, 1, d.MaxClass)
}

func TestLoadTableRejectsMalformedEntries(t *testing.T) {
	reg := NewRegistry()
	err := reg.LoadTable(strings.NewReader("- id: broken\n  maxClass: 9\n"))
	var badErr *BadDescriptorError
	assert.ErrorAs(t, err, &badErr)

	err = NewRegistry().LoadTable(strings.NewReader("not: [a, list"))
	assert.Error(t, err)
}

func TestDefaultRegistryCoversKnownFeatures(t *testing.T) {
	reg := Default()
	for _, id := range []string{
		NoStrictAliasing, ShiftGuard, DivideGuard, StoreSurvival,
		AlignRelax, ProvenanceWiden, VolatileTaint, LayoutRandomize,
		WarnUnprovable, SanitizeFloatCast, SanitizeNullCall,
		SanitizeSigHash, SanitizeReturn,
	} {
		_, err := reg.Lookup(id)
		assert.NoError(t, err, "built-in table should carry %s", id)
	}
}
