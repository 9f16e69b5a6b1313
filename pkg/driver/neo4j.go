package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/akgraph/pkg/similarity"
	"github.com/soundprediction/akgraph/pkg/typeresolver"
	"github.com/soundprediction/akgraph/pkg/types"
)

// BaseLabel is applied to every entity node regardless of type, so a
// base-label query always retrieves the full entity population.
const BaseLabel = "Entity"

// relationshipType is the fixed edge label; the canonical type is stored
// as a property and made part of the merge key, so dedup works without
// dynamic edge types.
const relationshipType = "RELATES_TO"

// Neo4jStore implements GraphStore against a Neo4j database.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to Neo4j with basic auth. The database falls back
// to "neo4j" when empty.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: client, database: database}, nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// UpsertEntity merges the entity on its id, setting the base label plus
// the sanitized type label.
func (s *Neo4jStore) UpsertEntity(ctx context.Context, entity *types.ResolvedEntity) error {
	if err := entity.Validate(); err != nil {
		return err
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		label := typeresolver.SanitizeLabel(entity.Type)
		query := fmt.Sprintf(`
			MERGE (n:%s {id: $id})
			SET n:%s
			SET n += $properties
			SET n.last_seen_at = $last_seen_at
		`, BaseLabel, label)

		_, err := tx.Run(ctx, query, map[string]any{
			"id":           entity.ID,
			"properties":   entityProperties(entity),
			"last_seen_at": time.Now().UTC().Format(time.RFC3339),
		})
		return nil, err
	})
	return err
}

// UpsertRelationship merges the edge keyed on source, target and canonical
// type. Missing endpoints make the MERGE a no-op rather than an error; the
// resolver guarantees endpoints are written first.
func (s *Neo4jStore) UpsertRelationship(ctx context.Context, rel *types.ResolvedRelationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (a:%[1]s {id: $source_id})
			MATCH (b:%[1]s {id: $target_id})
			MERGE (a)-[r:%[2]s {type: $type}]->(b)
			SET r += $properties
			SET r.last_seen_at = $last_seen_at
		`, BaseLabel, relationshipType)

		_, err := tx.Run(ctx, query, map[string]any{
			"source_id":    rel.SourceID,
			"target_id":    rel.TargetID,
			"type":         rel.Type,
			"properties":   relationshipProperties(rel),
			"last_seen_at": time.Now().UTC().Format(time.RFC3339),
		})
		return nil, err
	})
	return err
}

// EntityByNameType does the exact-match lookup on normalized name and
// canonical type.
func (s *Neo4jStore) EntityByNameType(ctx context.Context, normalizedName, canonicalType string) (*types.ResolvedEntity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%s {normalized_name: $name, type: $type})
			RETURN n
			LIMIT 1
		`, BaseLabel)
		res, err := tx.Run(ctx, query, map[string]any{
			"name": normalizedName,
			"type": canonicalType,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return entityFromRecord(records[0])
}

// EntitiesByType returns entities carrying the sanitized type label or,
// for pre-labeling records, a matching type property.
func (s *Neo4jStore) EntitiesByType(ctx context.Context, canonicalType string) ([]*types.ResolvedEntity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	label := typeresolver.SanitizeLabel(canonicalType)
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%s)
			WHERE $label IN labels(n) OR n.type = $type
			RETURN n
		`, BaseLabel)
		res, err := tx.Run(ctx, query, map[string]any{
			"label": label,
			"type":  canonicalType,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return entitiesFromRecords(result.([]*db.Record))
}

// AllEntities returns the full entity population via the base label.
func (s *Neo4jStore) AllEntities(ctx context.Context) ([]*types.ResolvedEntity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`MATCH (n:%s) RETURN n`, BaseLabel)
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return entitiesFromRecords(result.([]*db.Record))
}

// Relationship looks up the edge for the (source, target, type) triple.
func (s *Neo4jStore) Relationship(ctx context.Context, sourceID, targetID, canonicalType string) (*types.ResolvedRelationship, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (a:%[1]s {id: $source_id})-[r:%[2]s {type: $type}]->(b:%[1]s {id: $target_id})
			RETURN r
			LIMIT 1
		`, BaseLabel, relationshipType)
		res, err := tx.Run(ctx, query, map[string]any{
			"source_id": sourceID,
			"target_id": targetID,
			"type":      canonicalType,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return relationshipFromRecord(records[0], sourceID, targetID)
}

// RecordProvenance appends a provenance node linked by id reference only;
// provenance is write-once and never merged.
func (s *Neo4jStore) RecordProvenance(ctx context.Context, prov types.Provenance) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CREATE (p:Provenance {
				record_id:   $record_id,
				record_kind: $record_kind,
				document_id: $document_id,
				chunk_index: $chunk_index,
				at:          $at
			})
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"record_id":   prov.RecordID,
			"record_kind": prov.RecordKind,
			"document_id": prov.DocumentID,
			"chunk_index": prov.ChunkIndex,
			"at":          prov.Timestamp.UTC().Format(time.RFC3339),
		})
		return nil, err
	})
	return err
}

// DistinctEntityTypes returns the canonical types present in the store.
func (s *Neo4jStore) DistinctEntityTypes(ctx context.Context) ([]string, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%s)
			WHERE n.type IS NOT NULL
			RETURN DISTINCT n.type AS type
		`, BaseLabel)
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if v, ok := rec.Get("type"); ok {
			if t, ok := v.(string); ok && t != "" {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// Stats reports aggregate counts over nodes and edges.
func (s *Neo4jStore) Stats(ctx context.Context) (Stats, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%[1]s)
			WITH count(n) AS entities,
			     count(DISTINCT n.type) AS entity_types,
			     count(DISTINCT n.document_id) AS documents
			OPTIONAL MATCH (:%[1]s)-[r:%[2]s]->(:%[1]s)
			RETURN entities, entity_types, documents, count(r) AS relationships
		`, BaseLabel, relationshipType)
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return Stats{}, err
	}

	record := result.(*db.Record)
	stats := Stats{}
	if v, ok := record.Get("entities"); ok {
		stats.Entities, _ = v.(int64)
	}
	if v, ok := record.Get("relationships"); ok {
		stats.Relationships, _ = v.(int64)
	}
	if v, ok := record.Get("entity_types"); ok {
		stats.EntityTypes, _ = v.(int64)
	}
	if v, ok := record.Get("documents"); ok {
		stats.Documents, _ = v.(int64)
	}
	return stats, nil
}

// Close shuts down the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func entityProperties(entity *types.ResolvedEntity) map[string]any {
	props := map[string]any{
		"name":            entity.Name,
		"normalized_name": similarity.Normalize(entity.Name),
		"type":            entity.Type,
		"document_id":     entity.DocumentID,
		"confidence":      entity.Confidence,
	}
	if len(entity.Aliases) > 0 {
		props["aliases"] = entity.Aliases
	}
	if !entity.CreatedAt.IsZero() {
		props["created_at"] = entity.CreatedAt.UTC().Format(time.RFC3339)
	}
	for k, v := range entity.Properties {
		props["prop_"+k] = propertyValue(v)
	}
	return props
}

func relationshipProperties(rel *types.ResolvedRelationship) map[string]any {
	props := map[string]any{
		"id":          rel.ID,
		"document_id": rel.DocumentID,
		"confidence":  rel.Confidence,
	}
	if !rel.CreatedAt.IsZero() {
		props["created_at"] = rel.CreatedAt.UTC().Format(time.RFC3339)
	}
	for k, v := range rel.Properties {
		props["prop_"+k] = propertyValue(v)
	}
	return props
}

// propertyValue keeps primitives as-is and JSON-encodes composite values,
// since Neo4j properties cannot hold maps.
func propertyValue(v any) any {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

func entitiesFromRecords(records []*db.Record) ([]*types.ResolvedEntity, error) {
	out := make([]*types.ResolvedEntity, 0, len(records))
	for _, rec := range records {
		entity, err := entityFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func entityFromRecord(record *db.Record) (*types.ResolvedEntity, error) {
	value, found := record.Get("n")
	if !found {
		return nil, ErrNotFound
	}
	node, ok := value.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected type for node: got %T, expected dbtype.Node", value)
	}

	entity := &types.ResolvedEntity{
		Properties: make(map[string]any),
	}
	for k, v := range node.Props {
		switch k {
		case "id":
			entity.ID, _ = v.(string)
		case "name":
			entity.Name, _ = v.(string)
		case "type":
			entity.Type, _ = v.(string)
		case "document_id":
			entity.DocumentID, _ = v.(string)
		case "confidence":
			entity.Confidence, _ = v.(float64)
		case "aliases":
			entity.Aliases = stringSlice(v)
		case "created_at":
			entity.CreatedAt = parseTime(v)
		case "last_seen_at":
			entity.LastSeenAt = parseTime(v)
		case "normalized_name":
			// derived, not carried on the struct
		default:
			if name, ok := cutPropPrefix(k); ok {
				entity.Properties[name] = v
			}
		}
	}
	return entity, nil
}

func relationshipFromRecord(record *db.Record, sourceID, targetID string) (*types.ResolvedRelationship, error) {
	value, found := record.Get("r")
	if !found {
		return nil, ErrNotFound
	}
	edge, ok := value.(dbtype.Relationship)
	if !ok {
		return nil, fmt.Errorf("unexpected type for relationship: got %T, expected dbtype.Relationship", value)
	}

	rel := &types.ResolvedRelationship{
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: make(map[string]any),
	}
	for k, v := range edge.Props {
		switch k {
		case "id":
			rel.ID, _ = v.(string)
		case "type":
			rel.Type, _ = v.(string)
		case "document_id":
			rel.DocumentID, _ = v.(string)
		case "confidence":
			rel.Confidence, _ = v.(float64)
		case "created_at":
			rel.CreatedAt = parseTime(v)
		case "last_seen_at":
			rel.LastSeenAt = parseTime(v)
		default:
			if name, ok := cutPropPrefix(k); ok {
				rel.Properties[name] = v
			}
		}
	}
	return rel, nil
}

func cutPropPrefix(key string) (string, bool) {
	const prefix = "prop_"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):], true
	}
	return "", false
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	case time.Time:
		return t
	case dbtype.LocalDateTime:
		return t.Time()
	default:
		return time.Time{}
	}
}
