package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/akgraph/pkg/types"
)

func entityByName(entities []types.CandidateEntity, name string) *types.CandidateEntity {
	for i := range entities {
		if entities[i].Name == name {
			return &entities[i]
		}
	}
	return nil
}

func TestPatternExtractsEntities(t *testing.T) {
	p := NewPattern()
	result, err := p.Extract(context.Background(), Request{
		ChunkText: "John Smith manages Project Alpha. Project Alpha has a $500,000 budget.",
	})
	require.NoError(t, err)

	john := entityByName(result.Entities, "John Smith")
	require.NotNil(t, john)
	assert.Equal(t, "PERSON", john.Type)
	assert.Equal(t, patternEntityConfidence, john.Confidence)

	alpha := entityByName(result.Entities, "Alpha")
	require.NotNil(t, alpha)
	assert.Equal(t, "PROJECT", alpha.Type)

	amount := entityByName(result.Entities, "$500,000")
	require.NotNil(t, amount)
	assert.Equal(t, "AMOUNT", amount.Type)
}

func TestPatternSpecificTypesWinOverPerson(t *testing.T) {
	p := NewPattern()
	result, err := p.Extract(context.Background(), Request{
		ChunkText: "We visited Acme Corp and spoke with Dr. Jones about the Quarterly Planning Meeting.",
	})
	require.NoError(t, err)

	acme := entityByName(result.Entities, "Acme")
	require.NotNil(t, acme)
	assert.Equal(t, "ORGANIZATION", acme.Type)

	jones := entityByName(result.Entities, "Jones")
	require.NotNil(t, jones)
	assert.Equal(t, "PERSON", jones.Type)
}

func TestPatternDeduplicatesMentions(t *testing.T) {
	p := NewPattern()
	result, err := p.Extract(context.Background(), Request{
		ChunkText: "Mary Jane met Mary Jane and mary jane again.",
	})
	require.NoError(t, err)

	count := 0
	for _, e := range result.Entities {
		if e.Name == "Mary Jane" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPatternProximityRelationships(t *testing.T) {
	p := NewPattern()
	result, err := p.Extract(context.Background(), Request{
		ChunkText: "John Smith works on Project Alpha every day.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Relationships)

	var found bool
	for _, r := range result.Relationships {
		if r.Type == "WORKS_ON" {
			found = true
			assert.Equal(t, patternRelationshipConfidence, r.Confidence)
		}
	}
	assert.True(t, found, "expected a PERSON->PROJECT WORKS_ON relationship")
}

func TestPatternNoEntities(t *testing.T) {
	p := NewPattern()
	_, err := p.Extract(context.Background(), Request{ChunkText: "nothing matches here."})
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestPatternDates(t *testing.T) {
	p := NewPattern()
	result, err := p.Extract(context.Background(), Request{
		ChunkText: "The deadline moved from 12/31/2024 to 2025-03-01, announced January 5, 2025.",
	})
	require.NoError(t, err)

	for _, name := range []string{"12/31/2024", "2025-03-01", "January 5, 2025"} {
		e := entityByName(result.Entities, name)
		require.NotNil(t, e, "expected date entity %q", name)
		assert.Equal(t, "DATE", e.Type)
	}
}
