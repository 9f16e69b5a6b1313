// Package domaincache persists document analyses and per-domain type
// usage statistics in an embedded Badger store. It serves two purposes:
// skipping repeated analysis of near-duplicate documents (keyed by content
// hash) and supplying ranked type suggestions when the external extractor
// is unavailable. The cache only grows; entries are superseded by
// higher-confidence observations, never evicted.
package domaincache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/akgraph/pkg/types"
)

// ErrMiss is returned when no cached entry exists for a key.
var ErrMiss = errors.New("domaincache: miss")

const (
	analysisPrefix = "analysis/"
	usagePrefix    = "typeusage/"
)

// Cache is a Badger-backed domain cache. Safe for concurrent use; Badger
// serializes conflicting writes internally.
type Cache struct {
	db *badger.DB
}

// Open opens or creates the cache at dir.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open domain cache at %s: %w", dir, err)
	}
	return &Cache{db: db}, nil
}

// OpenInMemory opens a non-persistent cache, used by tests and dry runs.
func OpenInMemory() (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory domain cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close flushes and closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetAnalysis looks up a cached document analysis by content hash.
func (c *Cache) GetAnalysis(contentHash string) (*types.DocumentAnalysis, error) {
	var analysis types.DocumentAnalysis
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(analysisPrefix + contentHash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &analysis)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("analysis lookup: %w", err)
	}
	return &analysis, nil
}

// PutAnalysis stores an analysis under the content hash. An existing entry
// with higher confidence is kept.
func (c *Cache) PutAnalysis(contentHash string, analysis types.DocumentAnalysis) error {
	key := []byte(analysisPrefix + contentHash)
	return c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			var existing types.DocumentAnalysis
			verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			})
			if verr == nil && existing.Confidence > analysis.Confidence {
				return nil
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		encoded, err := json.Marshal(analysis)
		if err != nil {
			return err
		}
		return txn.Set(key, encoded)
	})
}

func usageKey(domain, subdomain string, kind types.TypeKind, canonicalType string) []byte {
	return []byte(usagePrefix + domain + "/" + subdomain + "/" + string(kind) + "/" + canonicalType)
}

// RecordTypeUsage merges a usage observation into the stored record:
// counters accumulate, the confidence average is recomputed over the
// combined count, and the earliest discovery source is kept.
func (c *Cache) RecordTypeUsage(usage types.TypeUsage) error {
	if usage.Type == "" || usage.UsageCount <= 0 {
		return nil
	}
	key := usageKey(usage.Domain, usage.Subdomain, usage.Kind, usage.Type)
	return c.db.Update(func(txn *badger.Txn) error {
		merged := usage
		item, err := txn.Get(key)
		if err == nil {
			var existing types.TypeUsage
			verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			})
			if verr == nil {
				total := existing.UsageCount + usage.UsageCount
				merged.AvgConfidence = (existing.AvgConfidence*float64(existing.UsageCount) +
					usage.AvgConfidence*float64(usage.UsageCount)) / float64(total)
				merged.UsageCount = total
				merged.Source = existing.Source
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		merged.UpdatedAt = time.Now().UTC()

		encoded, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		return txn.Set(key, encoded)
	})
}

// TypeUsageFor returns all usage records for a (domain, subdomain) pair.
func (c *Cache) TypeUsageFor(domain, subdomain string) ([]types.TypeUsage, error) {
	prefix := []byte(usagePrefix + domain + "/" + subdomain + "/")
	var out []types.TypeUsage
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var usage types.TypeUsage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &usage)
			})
			if err != nil {
				return err
			}
			out = append(out, usage)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("type usage scan: %w", err)
	}
	return out, nil
}

// FallbackTypes returns up to limit canonical types for a domain ranked by
// usage count then average confidence, aggregated across subdomains. Used
// as the extractor's last-resort type source.
func (c *Cache) FallbackTypes(domain string, kind types.TypeKind, limit int) ([]string, error) {
	prefix := []byte(usagePrefix + domain + "/")
	byType := make(map[string]types.TypeUsage)
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var usage types.TypeUsage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &usage)
			})
			if err != nil {
				return err
			}
			if usage.Kind != kind {
				continue
			}
			agg, ok := byType[usage.Type]
			if !ok {
				byType[usage.Type] = usage
				continue
			}
			total := agg.UsageCount + usage.UsageCount
			agg.AvgConfidence = (agg.AvgConfidence*float64(agg.UsageCount) +
				usage.AvgConfidence*float64(usage.UsageCount)) / float64(total)
			agg.UsageCount = total
			byType[usage.Type] = agg
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fallback type scan: %w", err)
	}

	ranked := make([]types.TypeUsage, 0, len(byType))
	for _, usage := range byType {
		ranked = append(ranked, usage)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].UsageCount != ranked[j].UsageCount {
			return ranked[i].UsageCount > ranked[j].UsageCount
		}
		if ranked[i].AvgConfidence != ranked[j].AvgConfidence {
			return ranked[i].AvgConfidence > ranked[j].AvgConfidence
		}
		return ranked[i].Type < ranked[j].Type
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, usage := range ranked {
		out[i] = usage.Type
	}
	return out, nil
}
