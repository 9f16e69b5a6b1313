package typeresolver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/akgraph/pkg/types"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"API Service", "API_SERVICE"},
		{"2-factor-auth", "TYPE_2_FACTOR_AUTH"},
		{"", "UNKNOWN"},
		{"PERSON", "PERSON"},
		{"person", "PERSON"},
		{"works for", "WORKS_FOR"},
		{"  spaced  ", "SPACED"},
		{"naïve", "NA_VE"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeLabel(tt.in), "SanitizeLabel(%q)", tt.in)
	}
}

func TestResolveRegistersNewType(t *testing.T) {
	r := New()

	canonical, isNew := r.Resolve("person", types.KindEntity, GlobalScope, 0.9)
	assert.Equal(t, "PERSON", canonical)
	assert.True(t, isNew)

	canonical, isNew = r.Resolve("person", types.KindEntity, GlobalScope, 0.8)
	assert.Equal(t, "PERSON", canonical)
	assert.False(t, isNew)
}

func TestResolveCaseInsensitiveExact(t *testing.T) {
	r := New()
	r.Resolve("Person", types.KindEntity, GlobalScope, 1.0)

	canonical, isNew := r.Resolve("PERSON", types.KindEntity, GlobalScope, 1.0)
	assert.Equal(t, "PERSON", canonical)
	assert.False(t, isNew)

	canonical, isNew = r.Resolve(" person ", types.KindEntity, GlobalScope, 1.0)
	assert.Equal(t, "PERSON", canonical)
	assert.False(t, isNew)
}

func TestResolveFuzzyMatch(t *testing.T) {
	r := New()
	r.Resolve("software engineer", types.KindEntity, GlobalScope, 1.0)

	// containment scores 0.95, above the default threshold
	canonical, isNew := r.Resolve("engineer", types.KindEntity, GlobalScope, 0.7)
	assert.Equal(t, "SOFTWARE_ENGINEER", canonical)
	assert.False(t, isNew)
}

func TestResolveBelowThresholdCreatesNew(t *testing.T) {
	r := New()
	r.Resolve("person", types.KindEntity, GlobalScope, 1.0)

	canonical, isNew := r.Resolve("organization", types.KindEntity, GlobalScope, 1.0)
	assert.Equal(t, "ORGANIZATION", canonical)
	assert.True(t, isNew)
}

func TestResolveKindsAreIndependent(t *testing.T) {
	r := New()
	r.Resolve("manages", types.KindRelationship, GlobalScope, 1.0)

	// the same raw string under the entity kind is a fresh registration
	_, isNew := r.Resolve("manages", types.KindEntity, GlobalScope, 1.0)
	assert.True(t, isNew)
}

func TestResolveScopesAreIndependent(t *testing.T) {
	r := New()
	tech := Scope{Domain: "technical"}

	_, isNew := r.Resolve("service", types.KindEntity, tech, 1.0)
	assert.True(t, isNew)

	_, isNew = r.Resolve("service", types.KindEntity, GlobalScope, 1.0)
	assert.True(t, isNew)
}

func TestResolveFallsBackToGlobalScope(t *testing.T) {
	r := New()
	r.Register("WIDGET", types.KindEntity, GlobalScope, types.SourceGraph)

	scope := Scope{Domain: "business", Subdomain: "general"}
	canonical, isNew := r.Resolve("widget", types.KindEntity, scope, 0.9)
	assert.Equal(t, "WIDGET", canonical)
	assert.False(t, isNew, "graph-absorbed type should resolve, not re-register")

	// fuzzy fallback reaches the global scope too
	canonical, isNew = r.Resolve("widget factory widget", types.KindEntity, scope, 0.9)
	assert.Equal(t, "WIDGET", canonical)
	assert.False(t, isNew)
}

func TestKnownTypesIncludeGlobalScope(t *testing.T) {
	r := New()
	r.Register("WIDGET", types.KindEntity, GlobalScope, types.SourceGraph)

	scope := Scope{Domain: "business", Subdomain: "general"}
	r.Resolve("person", types.KindEntity, scope, 1.0)

	known := r.KnownTypes(scope, types.KindEntity)
	assert.ElementsMatch(t, []string{"PERSON", "WIDGET"}, known)
}

func TestResolveEmptyType(t *testing.T) {
	r := New()
	canonical, isNew := r.Resolve("   ", types.KindEntity, GlobalScope, 1.0)
	assert.Equal(t, "UNKNOWN", canonical)
	assert.False(t, isNew)
}

func TestRelationshipCaseInsensitiveCanonicalization(t *testing.T) {
	r := New()

	first, _ := r.Resolve("manages", types.KindRelationship, GlobalScope, 0.9)
	second, isNew := r.Resolve("MANAGES", types.KindRelationship, GlobalScope, 0.9)

	assert.Equal(t, first, second)
	assert.False(t, isNew)
}

func TestRegisterIsAdditive(t *testing.T) {
	r := New()
	r.Register("PERSON", types.KindEntity, GlobalScope, types.SourceCache)

	canonical, isNew := r.Resolve("person", types.KindEntity, GlobalScope, 0.9)
	assert.Equal(t, "PERSON", canonical)
	assert.False(t, isNew)

	// re-registering does not reset stats
	r.Register("PERSON", types.KindEntity, GlobalScope, types.SourceSeed)
	usage := r.Usage(GlobalScope)
	require.Len(t, usage, 1)
	assert.Equal(t, int64(1), usage[0].UsageCount)
	assert.Equal(t, types.SourceCache, usage[0].Source)
}

func TestKnownTypesOrderedByUsage(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		r.Resolve("person", types.KindEntity, GlobalScope, 1.0)
	}
	r.Resolve("project", types.KindEntity, GlobalScope, 1.0)
	r.Resolve("manages", types.KindRelationship, GlobalScope, 1.0)

	known := r.KnownTypes(GlobalScope, types.KindEntity)
	assert.Equal(t, []string{"PERSON", "PROJECT"}, known)
}

func TestUsageStats(t *testing.T) {
	r := New()
	r.Resolve("person", types.KindEntity, GlobalScope, 1.0)
	r.Resolve("person", types.KindEntity, GlobalScope, 0.5)

	usage := r.Usage(GlobalScope)
	require.Len(t, usage, 1)
	assert.Equal(t, "PERSON", usage[0].Type)
	assert.Equal(t, int64(2), usage[0].UsageCount)
	assert.InDelta(t, 0.75, usage[0].AvgConfidence, 1e-9)
	assert.Equal(t, types.SourceExtractor, usage[0].Source)
}

func TestFuzzyScanBounded(t *testing.T) {
	r := New(WithMaxCompare(10))
	for i := 0; i < 50; i++ {
		r.Resolve(fmt.Sprintf("type nr %d", i), types.KindEntity, GlobalScope, 1.0)
	}
	// the scan still completes and exact lookups are unaffected
	canonical, isNew := r.Resolve("type nr 7", types.KindEntity, GlobalScope, 1.0)
	assert.Equal(t, "TYPE_NR_7", canonical)
	assert.False(t, isNew)
}
