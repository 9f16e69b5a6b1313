package types

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"
)

// ContextKey is the type used for values stashed on a context passed
// through the pipeline, so telemetry handlers can recover them.
type ContextKey string

const (
	ContextKeyDocumentID    ContextKey = "document_id"
	ContextKeyChunkIndex    ContextKey = "chunk_index"
	ContextKeyRequestSource ContextKey = "request_source"
)

// Validation errors
var (
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrEmptyName    = errors.New("name cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrEmptyType    = errors.New("type cannot be empty")
	ErrInvalidScore = errors.New("confidence must be between 0 and 1")
)

// Document represents a source document being processed. Documents are
// immutable once ingested; a content change produces a new Document record,
// detected via ContentHash.
type Document struct {
	ID         string                 `json:"id" mapstructure:"id"`
	Title      string                 `json:"title" mapstructure:"title"`
	Content    string                 `json:"content" mapstructure:"content"`
	Domain     string                 `json:"domain,omitempty" mapstructure:"domain"`
	Subdomain  string                 `json:"subdomain,omitempty" mapstructure:"subdomain"`
	SourcePath string                 `json:"source_path,omitempty" mapstructure:"source_path"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" mapstructure:"metadata"`
	CreatedAt  time.Time              `json:"created_at" mapstructure:"created_at"`
}

// Validate checks if the Document has all required fields set.
func (d *Document) Validate() error {
	if d.ID == "" {
		return ErrEmptyID
	}
	if d.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// ContentHash returns the fingerprint used for change detection and
// analysis caching. It covers the title and the leading content so that
// near-duplicate documents share an analysis entry.
func (d *Document) ContentHash() string {
	sample := d.Content
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	sum := md5.Sum([]byte(d.Title + ":" + sample))
	return hex.EncodeToString(sum[:])
}

// Chunk is a contiguous span of a document's text. Chunks are produced by
// the chunker and never mutated afterwards.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// CandidateEntity is a single entity mention proposed by an extractor for
// one chunk. Candidates are ephemeral; they live only for the duration of
// that chunk's resolution pass.
type CandidateEntity struct {
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Aliases    []string               `json:"aliases,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Confidence float64                `json:"confidence"`
}

// Validate checks if the candidate is usable for resolution.
func (c *CandidateEntity) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.Type == "" {
		return ErrEmptyType
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return ErrInvalidScore
	}
	return nil
}

// CandidateRelationship is a relationship proposed by an extractor between
// two candidate entity names within one chunk.
type CandidateRelationship struct {
	SourceName string                 `json:"source_entity"`
	TargetName string                 `json:"target_entity"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Confidence float64                `json:"confidence"`
}

// Validate checks if the candidate is usable for resolution.
func (c *CandidateRelationship) Validate() error {
	if c.SourceName == "" || c.TargetName == "" {
		return ErrEmptyName
	}
	if c.Type == "" {
		return ErrEmptyType
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return ErrInvalidScore
	}
	return nil
}

// ResolvedEntity is the canonical graph node chosen to represent an
// equivalence class of candidate mentions. Its ID is assigned once and
// never changes; later candidates either reuse it or create a new entity.
type ResolvedEntity struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	DocumentID string                 `json:"document_id"`
	Confidence float64                `json:"confidence"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Aliases    []string               `json:"aliases,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	LastSeenAt time.Time              `json:"last_seen_at"`
}

// Validate checks if the entity has all required fields for persistence.
func (e *ResolvedEntity) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Name == "" {
		return ErrEmptyName
	}
	if e.Type == "" {
		return ErrEmptyType
	}
	return nil
}

// AddAlias records an alternate name merged into this canonical entity.
// Duplicate aliases and the canonical name itself are ignored.
func (e *ResolvedEntity) AddAlias(name string) {
	if name == "" || name == e.Name {
		return
	}
	for _, a := range e.Aliases {
		if a == name {
			return
		}
	}
	e.Aliases = append(e.Aliases, name)
}

// ResolvedRelationship is the canonical directed edge between two resolved
// entities. At most one exists per (source, target, canonical type) triple
// when relationship deduplication is enabled.
type ResolvedRelationship struct {
	ID         string                 `json:"id"`
	SourceID   string                 `json:"source_id"`
	TargetID   string                 `json:"target_id"`
	Type       string                 `json:"type"`
	DocumentID string                 `json:"document_id"`
	Confidence float64                `json:"confidence"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	LastSeenAt time.Time              `json:"last_seen_at"`
}

// Validate checks if the relationship has all required fields for persistence.
func (r *ResolvedRelationship) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.SourceID == "" || r.TargetID == "" {
		return ErrEmptyID
	}
	if r.Type == "" {
		return ErrEmptyType
	}
	return nil
}

// Provenance links a resolved record back to the document and chunk that
// produced or last reinforced it. Provenance is append-only.
type Provenance struct {
	RecordID   string    `json:"record_id"`
	RecordKind string    `json:"record_kind"` // "entity" or "relationship"
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Timestamp  time.Time `json:"timestamp"`
}

// DiscoverySource records where a type observation came from.
type DiscoverySource string

const (
	SourceExtractor DiscoverySource = "extractor"
	SourceCache     DiscoverySource = "cache"
	SourceSeed      DiscoverySource = "seed"
	SourceGraph     DiscoverySource = "graph"
)

// TypeKind distinguishes entity types from relationship types in scoped
// type caches.
type TypeKind string

const (
	KindEntity       TypeKind = "entity"
	KindRelationship TypeKind = "relationship"
)

// RecordKind values for provenance records.
const (
	RecordKindEntity       = "entity"
	RecordKindRelationship = "relationship"
)

// DocumentAnalysis is the cached result of classifying a document's nature
// and domain. Entries are keyed by content hash and only superseded by
// higher-confidence observations.
type DocumentAnalysis struct {
	Domain            string   `json:"domain"`
	Subdomain         string   `json:"subdomain"`
	Description       string   `json:"description,omitempty"`
	EntityTypes       []string `json:"key_entity_types"`
	RelationshipTypes []string `json:"key_relationship_types"`
	Confidence        float64  `json:"confidence"`
	Method            string   `json:"analysis_method"`
}

// TypeUsage is a per-(domain, subdomain) usage record for one canonical
// type. Counters only ever increase.
type TypeUsage struct {
	Type          string          `json:"type"`
	Kind          TypeKind        `json:"kind"`
	Domain        string          `json:"domain"`
	Subdomain     string          `json:"subdomain"`
	UsageCount    int64           `json:"usage_count"`
	AvgConfidence float64         `json:"avg_confidence"`
	Source        DiscoverySource `json:"source"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
