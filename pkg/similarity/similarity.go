// Package similarity scores entity name pairs for deduplication. Scores
// are in [0, 1] and symmetric; resolution layers compare them against
// configured thresholds.
package similarity

import "strings"

// Scores assigned by the structural checks. Containment is deliberately
// below exact match so "Apple" merging into "Apple Inc." clears a 0.95
// cross-type bar while staying distinguishable from identical names.
const (
	scoreExact       = 1.0
	scoreContainment = 0.95
)

// minContainmentLen guards the substring check against trivially short
// names ("a" is contained in almost everything).
const minContainmentLen = 3

// stopwords excluded from the word-overlap score. Corporate suffixes and
// articles carry no identity signal.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"of": {}, "and": {}, "for": {}, "in": {}, "on": {},
	"inc": {}, "llc": {}, "ltd": {}, "corp": {}, "co": {},
}

// Normalize lowercases s, collapses runs of whitespace to single spaces,
// and trims surrounding whitespace. All comparisons operate on normalized
// forms.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Words returns the significant words of a normalized name: lowercase
// tokens with punctuation stripped and stopwords removed.
func Words(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Trim(f, ".,;:!?'\"()[]")
		if w == "" {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Score computes the similarity between two entity names. It is the
// maximum of three checks:
//
//   - 1.0 when the normalized forms are identical
//   - 0.95 when one normalized name contains the other and the shorter
//     side has at least three characters
//   - the Jaccard overlap of their significant word sets otherwise
//
// Empty names score 0 against everything.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return scoreExact
	}

	shorter := na
	if len(nb) < len(shorter) {
		shorter = nb
	}
	if len(shorter) >= minContainmentLen &&
		(strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return scoreContainment
	}

	return jaccard(Words(na), Words(nb))
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, w := range a {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, w := range b {
		setB[w] = struct{}{}
	}

	shared := 0
	for w := range setB {
		if _, ok := setA[w]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
