package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/soundprediction/akgraph/pkg/types"
)

// Confidence assigned to rule-based output; well below LLM extraction so
// downstream ranking can tell them apart.
const (
	patternEntityConfidence       = 0.6
	patternRelationshipConfidence = 0.4
	proximityWindow               = 100
)

// entityPatterns maps entity types to the regexes that recognize them.
// Group 1 holds the entity name where present.
var entityPatterns = map[string][]*regexp.Regexp{
	"PERSON": {
		regexp.MustCompile(`\b([A-Z][a-z]+ [A-Z][a-z]+(?:\s[A-Z][a-z]+)?)\b`),
		regexp.MustCompile(`\b(?:Mr|Ms|Mrs|Dr)\.?\s+([A-Z][a-z]+(?:\s[A-Z][a-z]+)?)\b`),
	},
	"ORGANIZATION": {
		regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)*)\s+(?:Inc|Corp|LLC|Ltd|Company|Organization)\b`),
		regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)*)\s+Department\b`),
		regexp.MustCompile(`\bDepartment\s+of\s+([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)*)\b`),
	},
	"PROJECT": {
		regexp.MustCompile(`\bProject\s+([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)*)\b`),
		regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)*)\s+Project\b`),
	},
	"MEETING": {
		regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)*)\s+Meeting\b`),
	},
	"POLICY": {
		regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)*)\s+Policy\b`),
	},
	"DATE": {
		regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`),
		regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
		regexp.MustCompile(`\b([A-Z][a-z]+\s+\d{1,2},?\s+\d{4})\b`),
	},
	"AMOUNT": {
		regexp.MustCompile(`(\$[\d,]+(?:\.\d{2})?(?:\s?(?:million|billion|thousand))?)`),
	},
	"LOCATION": {
		regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+)*)\s+Office\b`),
	},
}

// patternOrder fixes the extraction order: specific shapes first so a
// name like "Project Alpha" is typed PROJECT before the generic PERSON
// pattern can claim it.
var patternOrder = []string{
	"ORGANIZATION", "PROJECT", "MEETING", "POLICY",
	"DATE", "AMOUNT", "LOCATION", "PERSON",
}

// commonWords are capitalized tokens the patterns match that are never
// useful entities on their own.
var commonWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "all": {}, "any": {}, "some": {},
	"many": {}, "much": {}, "few": {}, "more": {}, "most": {}, "other": {},
	"another": {}, "such": {}, "only": {}, "own": {}, "same": {}, "so": {},
	"than": {}, "too": {}, "very": {}, "can": {}, "will": {}, "just": {},
	"should": {}, "now": {}, "document": {}, "notes": {},
}

// Pattern is the rule-based fallback extractor. It recognizes a fixed set
// of entity shapes with regexes and infers relationships from proximity
// and type pairs. Quality is far below the LLM path; it exists so
// documents still produce something when the external service is down.
type Pattern struct{}

// NewPattern returns the rule-based extractor.
func NewPattern() *Pattern { return &Pattern{} }

func (*Pattern) Name() string { return MethodPattern }

func (p *Pattern) Extract(ctx context.Context, req Request) (*Result, error) {
	entities := p.extractEntities(req.ChunkText)
	if len(entities) == 0 {
		return nil, ErrNoResult
	}
	relationships := p.extractRelationships(entities, req.ChunkText)
	return &Result{
		Entities:      entities,
		Relationships: relationships,
		Method:        MethodPattern,
	}, nil
}

func (p *Pattern) extractEntities(text string) []types.CandidateEntity {
	var entities []types.CandidateEntity
	seen := make(map[string]struct{})

	for _, entityType := range patternOrder {
		for _, re := range entityPatterns[entityType] {
			for _, match := range re.FindAllStringSubmatchIndex(text, -1) {
				start, end := match[0], match[1]
				if len(match) >= 4 && match[2] >= 0 {
					start, end = match[2], match[3]
				}
				name := strings.TrimSpace(text[start:end])
				key := strings.ToLower(name)
				if len(name) <= 2 {
					continue
				}
				if _, dup := seen[key]; dup {
					continue
				}
				if _, common := commonWords[key]; common {
					continue
				}
				seen[key] = struct{}{}
				entities = append(entities, types.CandidateEntity{
					Name:       name,
					Type:       entityType,
					Confidence: patternEntityConfidence,
					Properties: map[string]any{
						"extraction_method": MethodPattern,
						"match_position":    start,
					},
				})
			}
		}
	}
	return entities
}

// extractRelationships links entities whose mentions fall within the
// proximity window, typing the edge from the entity type pair.
func (p *Pattern) extractRelationships(entities []types.CandidateEntity, text string) []types.CandidateRelationship {
	lower := strings.ToLower(text)
	positions := make([][]int, len(entities))
	for i, e := range entities {
		positions[i] = mentionPositions(lower, strings.ToLower(e.Name))
	}

	var relationships []types.CandidateRelationship
	for i := range entities {
		for j := i + 1; j < len(entities); j++ {
			if !withinWindow(positions[i], positions[j], proximityWindow) {
				continue
			}
			source, target := entities[i], entities[j]
			relType := inferRelationshipType(source.Type, target.Type)
			// the type pair may only be meaningful in the other direction
			if relType == "RELATED_TO" {
				if reversed := inferRelationshipType(target.Type, source.Type); reversed != "RELATED_TO" {
					source, target, relType = target, source, reversed
				}
			}
			relationships = append(relationships, types.CandidateRelationship{
				SourceName: source.Name,
				TargetName: target.Name,
				Type:       relType,
				Confidence: patternRelationshipConfidence,
				Properties: map[string]any{
					"extraction_method": "proximity_based",
				},
			})
		}
	}
	return relationships
}

func mentionPositions(haystack, needle string) []int {
	if needle == "" {
		return nil
	}
	var out []int
	start := 0
	for {
		pos := strings.Index(haystack[start:], needle)
		if pos < 0 {
			return out
		}
		out = append(out, start+pos)
		start += pos + 1
	}
}

func withinWindow(a, b []int, window int) bool {
	for _, pa := range a {
		for _, pb := range b {
			d := pa - pb
			if d < 0 {
				d = -d
			}
			if d <= window {
				return true
			}
		}
	}
	return false
}

func inferRelationshipType(sourceType, targetType string) string {
	switch {
	case sourceType == "PERSON" && targetType == "PROJECT":
		return "WORKS_ON"
	case sourceType == "PERSON" && targetType == "MEETING":
		return "PARTICIPATES_IN"
	case sourceType == "PERSON" && targetType == "ORGANIZATION":
		return "WORKS_FOR"
	case sourceType == "ORGANIZATION" && targetType == "PROJECT":
		return "OWNS"
	case sourceType == "PROJECT" && targetType == "MEETING":
		return "REFERENCED_IN"
	case sourceType == "PROJECT" && targetType == "AMOUNT":
		return "HAS_BUDGET"
	default:
		return "RELATED_TO"
	}
}
