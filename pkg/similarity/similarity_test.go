package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Smith", "john smith"},
		{"  John   Smith  ", "john smith"},
		{"JOHN\tSMITH", "john smith"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestScoreExactAfterNormalization(t *testing.T) {
	assert.Equal(t, 1.0, Score("John Smith", "john  smith"))
	assert.Equal(t, 1.0, Score("APPLE", "apple"))
}

func TestScoreContainment(t *testing.T) {
	assert.Equal(t, 0.95, Score("Apple Inc.", "Apple"))
	assert.Equal(t, 0.95, Score("apple", "Apple Inc."))
	assert.Equal(t, 0.95, Score("International Business Machines", "Business"))
}

func TestScoreContainmentRejectsShortNames(t *testing.T) {
	// two characters is below the containment minimum
	assert.Less(t, Score("ab", "ab cdef ghij"), 0.95)
}

func TestScoreWordOverlap(t *testing.T) {
	// 4 shared significant words out of a 5-word union; word order differs
	// so the containment check does not apply
	got := Score("alpha beta gamma delta epsilon", "delta gamma beta alpha")
	assert.InDelta(t, 0.8, got, 1e-9)

	// 3 of 5
	got = Score("alpha beta gamma delta epsilon", "alpha beta gamma zeta eta")
	assert.InDelta(t, 3.0/7.0, got, 1e-9)
}

func TestScoreStopwordsIgnored(t *testing.T) {
	// corporate suffixes do not add to the union
	got := Score("Acme Widgets Inc", "Acme Widgets LLC")
	assert.Equal(t, 1.0, jaccard(Words("Acme Widgets Inc"), Words("Acme Widgets LLC")))
	// containment does not apply here, so the word overlap wins
	assert.GreaterOrEqual(t, got, 0.95)
}

func TestScoreUnrelated(t *testing.T) {
	assert.Equal(t, 0.0, Score("John Smith", "Quarterly Report"))
	assert.Equal(t, 0.0, Score("", "anything"))
	assert.Equal(t, 0.0, Score("anything", ""))
}

func TestScoreSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Apple Inc.", "Apple"},
		{"alpha beta gamma", "beta gamma delta"},
		{"John Smith", "Jane Smith"},
	}
	for _, p := range pairs {
		assert.Equal(t, Score(p[0], p[1]), Score(p[1], p[0]), "pair %v", p)
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"apple"}, Words("Apple Inc."))
	assert.Equal(t, []string{"john", "smith"}, Words("John Smith"))
	assert.Empty(t, Words("the of and"))
}
