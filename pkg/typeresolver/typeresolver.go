// Package typeresolver canonicalizes entity and relationship type labels.
// Raw extractor types ("person", "Person ", "works for") are normalized,
// fuzzy-matched against previously seen types in the same scope, and either
// mapped to an existing canonical form or registered as new. Canonical
// forms double as graph labels, so sanitization lives here and the graph
// writer reuses it.
package typeresolver

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/akgraph/pkg/similarity"
	"github.com/soundprediction/akgraph/pkg/types"
)

const (
	// DefaultThreshold is the minimum fuzzy score to treat a raw type as
	// an alias of a cached one.
	DefaultThreshold = 0.8
	// DefaultMaxCompare bounds the fuzzy scan: when a scope holds more
	// cached types than this, only the most-used ones are compared.
	DefaultMaxCompare = 200
)

// Scope identifies a type namespace. The zero value is the global scope;
// otherwise types are partitioned per (domain, subdomain).
type Scope struct {
	Domain    string
	Subdomain string
}

// GlobalScope is the namespace used when no domain classification exists.
var GlobalScope = Scope{}

func (s Scope) IsGlobal() bool { return s.Domain == "" && s.Subdomain == "" }

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	if s.Subdomain == "" {
		return s.Domain
	}
	return s.Domain + "/" + s.Subdomain
}

type record struct {
	canonical string
	kind      types.TypeKind
	source    types.DiscoverySource
	usage     int64
	confSum   float64
	updatedAt time.Time
}

func (r *record) avgConfidence() float64 {
	if r.usage == 0 {
		return 0
	}
	return r.confSum / float64(r.usage)
}

// Resolver caches canonical types per scope and kind. Safe for concurrent
// use; registration is additive and records are never evicted.
type Resolver struct {
	mu         sync.RWMutex
	scopes     map[Scope]map[string]*record
	threshold  float64
	maxCompare int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold overrides the fuzzy-match threshold.
func WithThreshold(t float64) Option {
	return func(r *Resolver) { r.threshold = t }
}

// WithMaxCompare overrides the fuzzy-scan bound.
func WithMaxCompare(n int) Option {
	return func(r *Resolver) { r.maxCompare = n }
}

// New returns an empty Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		scopes:     make(map[Scope]map[string]*record),
		threshold:  DefaultThreshold,
		maxCompare: DefaultMaxCompare,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// cacheKey distinguishes entity and relationship namespaces within one
// scope map.
func cacheKey(kind types.TypeKind, normalized string) string {
	return string(kind) + "\x00" + normalized
}

// Resolve maps rawType to its canonical form within scope. The lookup is
// exact first (case-normalized), then fuzzy against cached types of the
// same kind, then repeats both against the global scope, which holds types
// absorbed from the graph store; only a miss everywhere registers the
// sanitized form as a new canonical type. isNew reports whether a new type
// was registered. Every call updates the matched record's usage count and
// running confidence.
func (r *Resolver) Resolve(rawType string, kind types.TypeKind, scope Scope, confidence float64) (canonical string, isNew bool) {
	normalized := similarity.Normalize(rawType)
	if normalized == "" {
		return "UNKNOWN", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cache, ok := r.scopes[scope]
	if !ok {
		cache = make(map[string]*record)
		r.scopes[scope] = cache
	}

	if rec, ok := cache[cacheKey(kind, normalized)]; ok {
		rec.touch(confidence)
		return rec.canonical, false
	}

	if rec := r.bestFuzzy(cache, kind, normalized); rec != nil {
		// alias the raw form to the matched canonical so later exact
		// lookups skip the fuzzy scan
		cache[cacheKey(kind, normalized)] = rec
		rec.touch(confidence)
		return rec.canonical, false
	}

	if !scope.IsGlobal() {
		if global, ok := r.scopes[GlobalScope]; ok {
			rec, ok := global[cacheKey(kind, normalized)]
			if !ok {
				rec = r.bestFuzzy(global, kind, normalized)
			}
			if rec != nil {
				// adopt into the document scope with fresh stats; the
				// global record keeps serving other scopes
				adopted := &record{canonical: rec.canonical, kind: kind, source: rec.source}
				adopted.touch(confidence)
				cache[cacheKey(kind, normalized)] = adopted
				return adopted.canonical, false
			}
		}
	}

	rec := &record{
		canonical: SanitizeLabel(normalized),
		kind:      kind,
		source:    types.SourceExtractor,
	}
	rec.touch(confidence)
	cache[cacheKey(kind, normalized)] = rec
	return rec.canonical, true
}

func (rec *record) touch(confidence float64) {
	rec.usage++
	rec.confSum += confidence
	rec.updatedAt = time.Now().UTC()
}

// bestFuzzy scans cached records of the given kind for the highest-scoring
// match at or above the threshold. When the scope cache is larger than
// maxCompare, only the most-used records are scanned.
func (r *Resolver) bestFuzzy(cache map[string]*record, kind types.TypeKind, normalized string) *record {
	prefix := string(kind) + "\x00"

	type scored struct {
		key string
		rec *record
	}
	candidates := make([]scored, 0, len(cache))
	for key, rec := range cache {
		if strings.HasPrefix(key, prefix) {
			candidates = append(candidates, scored{key, rec})
		}
	}
	if len(candidates) > r.maxCompare {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].rec.usage > candidates[j].rec.usage
		})
		candidates = candidates[:r.maxCompare]
	}

	var best *record
	bestScore := 0.0
	for _, c := range candidates {
		cached := strings.TrimPrefix(c.key, prefix)
		score := similarity.Score(normalized, cached)
		if score > bestScore {
			bestScore = score
			best = c.rec
		}
	}
	if bestScore >= r.threshold {
		return best
	}
	return nil
}

// Register adds a canonical type to a scope without a resolution pass.
// Used to seed scopes from cached analyses and to absorb types found in
// the graph store. Registration is additive; an existing record keeps its
// stats.
func (r *Resolver) Register(canonical string, kind types.TypeKind, scope Scope, source types.DiscoverySource) {
	normalized := similarity.Normalize(canonical)
	if normalized == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cache, ok := r.scopes[scope]
	if !ok {
		cache = make(map[string]*record)
		r.scopes[scope] = cache
	}
	key := cacheKey(kind, normalized)
	if _, ok := cache[key]; ok {
		return
	}
	cache[key] = &record{
		canonical: SanitizeLabel(normalized),
		kind:      kind,
		source:    source,
		updatedAt: time.Now().UTC(),
	}
}

// KnownTypes returns the canonical types cached for a scope and kind,
// most used first. Global-scope types are included, so graph-refreshed
// types reach the extractor hints for every document. A canonical form
// present in both scopes is reported once.
func (r *Resolver) KnownTypes(scope Scope, kind types.TypeKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := string(kind) + "\x00"
	seen := make(map[string]*record)
	collect := func(cache map[string]*record) {
		for key, rec := range cache {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			if prev, ok := seen[rec.canonical]; !ok || rec.usage > prev.usage {
				seen[rec.canonical] = rec
			}
		}
	}
	if !scope.IsGlobal() {
		collect(r.scopes[GlobalScope])
	}
	collect(r.scopes[scope])
	out := make([]string, 0, len(seen))
	for canonical := range seen {
		out = append(out, canonical)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := seen[out[i]], seen[out[j]]
		if a.usage != b.usage {
			return a.usage > b.usage
		}
		return out[i] < out[j]
	})
	return out
}

// Usage snapshots the per-type statistics for a scope so they can be
// persisted. Aliased raw forms pointing at the same canonical record are
// reported once.
func (r *Resolver) Usage(scope Scope) []types.TypeUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cache, ok := r.scopes[scope]
	if !ok {
		return nil
	}
	seen := make(map[*record]struct{}, len(cache))
	out := make([]types.TypeUsage, 0, len(cache))
	for _, rec := range cache {
		if _, dup := seen[rec]; dup {
			continue
		}
		seen[rec] = struct{}{}
		out = append(out, types.TypeUsage{
			Type:          rec.canonical,
			Kind:          rec.kind,
			Domain:        scope.Domain,
			Subdomain:     scope.Subdomain,
			UsageCount:    rec.usage,
			AvgConfidence: rec.avgConfidence(),
			Source:        rec.source,
			UpdatedAt:     rec.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// SanitizeLabel converts an arbitrary type string into a form valid as a
// graph label: uppercase, with every character outside [A-Z0-9_] replaced
// by an underscore. A label starting with a digit is prefixed with TYPE_
// and an empty input becomes UNKNOWN.
func SanitizeLabel(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "UNKNOWN"
	}
	var b strings.Builder
	b.Grow(len(trimmed))
	for _, c := range strings.ToUpper(trimmed) {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	label := b.String()
	if label[0] >= '0' && label[0] <= '9' {
		label = "TYPE_" + label
	}
	return label
}
