package domaincache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/akgraph/pkg/types"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestAnalysisRoundTrip(t *testing.T) {
	cache := openTestCache(t)

	_, err := cache.GetAnalysis("deadbeef")
	assert.ErrorIs(t, err, ErrMiss)

	analysis := types.DocumentAnalysis{
		Domain:            "business",
		Subdomain:         "project-management",
		EntityTypes:       []string{"PERSON", "PROJECT"},
		RelationshipTypes: []string{"MANAGES"},
		Confidence:        0.9,
		Method:            "llm",
	}
	require.NoError(t, cache.PutAnalysis("deadbeef", analysis))

	got, err := cache.GetAnalysis("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, analysis, *got)
}

func TestPutAnalysisKeepsHigherConfidence(t *testing.T) {
	cache := openTestCache(t)

	strong := types.DocumentAnalysis{Domain: "legal", Confidence: 0.9, Method: "llm"}
	require.NoError(t, cache.PutAnalysis("hash", strong))

	weak := types.DocumentAnalysis{Domain: "general", Confidence: 0.6, Method: "keyword_based"}
	require.NoError(t, cache.PutAnalysis("hash", weak))

	got, err := cache.GetAnalysis("hash")
	require.NoError(t, err)
	assert.Equal(t, "legal", got.Domain)
	assert.Equal(t, 0.9, got.Confidence)

	// an equal-or-higher confidence observation supersedes
	better := types.DocumentAnalysis{Domain: "legal", Subdomain: "contracts", Confidence: 0.95, Method: "llm"}
	require.NoError(t, cache.PutAnalysis("hash", better))
	got, err = cache.GetAnalysis("hash")
	require.NoError(t, err)
	assert.Equal(t, "contracts", got.Subdomain)
}

func TestRecordTypeUsageAccumulates(t *testing.T) {
	cache := openTestCache(t)

	usage := types.TypeUsage{
		Type: "PERSON", Kind: types.KindEntity,
		Domain: "business", Subdomain: "general",
		UsageCount: 2, AvgConfidence: 0.8,
		Source: types.SourceExtractor,
	}
	require.NoError(t, cache.RecordTypeUsage(usage))

	usage.UsageCount = 2
	usage.AvgConfidence = 0.6
	usage.Source = types.SourceCache
	require.NoError(t, cache.RecordTypeUsage(usage))

	records, err := cache.TypeUsageFor("business", "general")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(4), records[0].UsageCount)
	assert.InDelta(t, 0.7, records[0].AvgConfidence, 1e-9)
	// the first-seen source sticks
	assert.Equal(t, types.SourceExtractor, records[0].Source)
}

func TestFallbackTypesRanked(t *testing.T) {
	cache := openTestCache(t)

	record := func(name string, count int64, conf float64, kind types.TypeKind) {
		require.NoError(t, cache.RecordTypeUsage(types.TypeUsage{
			Type: name, Kind: kind,
			Domain: "technical", Subdomain: "general",
			UsageCount: count, AvgConfidence: conf,
			Source: types.SourceExtractor,
		}))
	}
	record("SERVICE", 10, 0.9, types.KindEntity)
	record("API", 5, 0.8, types.KindEntity)
	record("COMPONENT", 5, 0.95, types.KindEntity)
	record("CALLS", 20, 0.9, types.KindRelationship)

	ranked, err := cache.FallbackTypes("technical", types.KindEntity, 10)
	require.NoError(t, err)
	// usage first, confidence breaks the tie; relationship kinds excluded
	assert.Equal(t, []string{"SERVICE", "COMPONENT", "API"}, ranked)

	limited, err := cache.FallbackTypes("technical", types.KindEntity, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"SERVICE", "COMPONENT"}, limited)
}

func TestFallbackTypesAggregatesSubdomains(t *testing.T) {
	cache := openTestCache(t)

	for _, sub := range []string{"frontend", "backend"} {
		require.NoError(t, cache.RecordTypeUsage(types.TypeUsage{
			Type: "SERVICE", Kind: types.KindEntity,
			Domain: "technical", Subdomain: sub,
			UsageCount: 3, AvgConfidence: 0.8,
			Source: types.SourceExtractor,
		}))
	}

	ranked, err := cache.FallbackTypes("technical", types.KindEntity, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"SERVICE"}, ranked)
}

func TestFallbackTypesEmptyDomain(t *testing.T) {
	cache := openTestCache(t)
	ranked, err := cache.FallbackTypes("unknown", types.KindEntity, 5)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestInMemoryCache(t *testing.T) {
	cache, err := OpenInMemory()
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.PutAnalysis("h", types.DocumentAnalysis{Domain: "business", Confidence: 0.5}))
	got, err := cache.GetAnalysis("h")
	require.NoError(t, err)
	assert.Equal(t, "business", got.Domain)
}
