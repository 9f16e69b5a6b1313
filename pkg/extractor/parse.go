package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/akgraph/pkg/types"
)

type entityPayload struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties"`
	Aliases    []string       `json:"aliases"`
}

type relationshipPayload struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties"`
}

type extractionPayload struct {
	Entities      []entityPayload       `json:"entities"`
	Relationships []relationshipPayload `json:"relationships"`
}

// parseExtraction pulls the candidate payload out of a model reply. Models
// wrap JSON in markdown fences or emit slightly broken JSON often enough
// that parsing tries, in order: the raw object, the fence-stripped object,
// and a repaired version of it.
func parseExtraction(content string) (*Result, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return nil, fmt.Errorf("unmarshal failed (%v) and repair failed: %w", err, rerr)
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal repaired JSON: %w", err)
		}
	}

	entities := make([]types.CandidateEntity, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		entities = append(entities, types.CandidateEntity{
			Name:       e.Name,
			Type:       e.Type,
			Confidence: e.Confidence,
			Properties: e.Properties,
			Aliases:    e.Aliases,
		})
	}
	relationships := make([]types.CandidateRelationship, 0, len(payload.Relationships))
	for _, r := range payload.Relationships {
		relationships = append(relationships, types.CandidateRelationship{
			SourceName: r.Source,
			TargetName: r.Target,
			Type:       r.Type,
			Confidence: r.Confidence,
			Properties: r.Properties,
		})
	}

	entities, relationships = validCandidates(entities, relationships)
	return &Result{Entities: entities, Relationships: relationships}, nil
}

// extractJSON strips markdown fences and trims to the outermost object.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if end := strings.LastIndex(content, "```"); end >= 0 {
			content = content[:end]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}
