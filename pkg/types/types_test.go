package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentValidate(t *testing.T) {
	doc := &Document{ID: "doc-1", Title: "t", Content: "hello"}
	assert.NoError(t, doc.Validate())

	assert.ErrorIs(t, (&Document{Content: "x"}).Validate(), ErrEmptyID)
	assert.ErrorIs(t, (&Document{ID: "doc-1"}).Validate(), ErrEmptyContent)
}

func TestDocumentContentHashStable(t *testing.T) {
	a := &Document{ID: "a", Title: "Report", Content: "same content"}
	b := &Document{ID: "b", Title: "Report", Content: "same content"}
	c := &Document{ID: "c", Title: "Report", Content: "different content"}

	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
}

func TestCandidateEntityValidate(t *testing.T) {
	tests := []struct {
		name string
		cand CandidateEntity
		want error
	}{
		{"valid", CandidateEntity{Name: "Apple", Type: "COMPANY", Confidence: 0.9}, nil},
		{"missing name", CandidateEntity{Type: "COMPANY", Confidence: 0.9}, ErrEmptyName},
		{"missing type", CandidateEntity{Name: "Apple", Confidence: 0.9}, ErrEmptyType},
		{"bad confidence", CandidateEntity{Name: "Apple", Type: "COMPANY", Confidence: 1.5}, ErrInvalidScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cand.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestResolvedEntityAddAlias(t *testing.T) {
	e := &ResolvedEntity{ID: "e1", Name: "Apple Inc.", Type: "COMPANY"}

	e.AddAlias("Apple")
	e.AddAlias("Apple")      // duplicate
	e.AddAlias("Apple Inc.") // canonical name itself
	e.AddAlias("")

	assert.Equal(t, []string{"Apple"}, e.Aliases)
}

func TestDocumentResultDegraded(t *testing.T) {
	r := &DocumentResult{Status: StatusCompleted}
	assert.False(t, r.Degraded())

	r.DegradedChunks = 1
	assert.True(t, r.Degraded())

	r = &DocumentResult{Errors: []ChunkError{{ChunkIndex: 0, Stage: "extract"}}}
	assert.True(t, r.Degraded())
}
