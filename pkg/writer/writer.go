// Package writer commits resolved batches to the graph store. Writes are
// grouped for throughput and retried per record with jittered exponential
// backoff; a record that exhausts its retries is reported as a partial
// failure instead of aborting the rest of the batch.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/soundprediction/akgraph/pkg/driver"
	"github.com/soundprediction/akgraph/pkg/resolver"
	"github.com/soundprediction/akgraph/pkg/types"
	"github.com/soundprediction/akgraph/pkg/utils"
)

// Default write parameters.
const (
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 200 * time.Millisecond
)

// FailedRecord identifies a record that could not be written after all
// retries.
type FailedRecord struct {
	RecordID   string
	RecordKind string
	Err        error
}

// Result summarizes one commit.
type Result struct {
	EntitiesWritten      int
	RelationshipsWritten int
	ProvenanceWritten    int
	Failed               []FailedRecord
}

// PartialFailure reports whether any record was dropped.
func (r Result) PartialFailure() bool { return len(r.Failed) > 0 }

// Writer persists resolver batches.
type Writer struct {
	store       driver.GraphStore
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithBatchSize overrides the write group size.
func WithBatchSize(n int) Option {
	return func(w *Writer) { w.batchSize = n }
}

// WithMaxAttempts overrides the per-record retry count.
func WithMaxAttempts(n int) Option {
	return func(w *Writer) { w.maxAttempts = n }
}

// WithBaseDelay overrides the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(w *Writer) { w.baseDelay = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// New builds a Writer over the given store.
func New(store driver.GraphStore, opts ...Option) *Writer {
	w := &Writer{
		store:       store,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Commit writes a batch: entities first so edges always find their
// endpoints, then relationships, then provenance. Records within a group
// are written concurrently; upserts are independent merges. Returns an
// error only when the context is cancelled; store-level failures surface
// through Result.Failed.
func (w *Writer) Commit(ctx context.Context, batch *resolver.Batch) (Result, error) {
	result := Result{}

	for _, group := range utils.Batch(batch.Entities, w.batchSize) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		fns := make([]func() error, len(group))
		for i, entity := range group {
			fns[i] = func() error {
				return w.withRetry(ctx, func() error {
					return w.store.UpsertEntity(ctx, entity)
				})
			}
		}
		for i, err := range utils.SemaphoreGather(ctx, 0, fns...) {
			if err != nil {
				w.logger.Error("entity write failed",
					"entity_id", group[i].ID, "name", group[i].Name, "error", err)
				result.Failed = append(result.Failed, FailedRecord{
					RecordID: group[i].ID, RecordKind: types.RecordKindEntity, Err: err,
				})
				continue
			}
			result.EntitiesWritten++
		}
	}

	for _, group := range utils.Batch(batch.Relationships, w.batchSize) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		fns := make([]func() error, len(group))
		for i, rel := range group {
			fns[i] = func() error {
				return w.withRetry(ctx, func() error {
					return w.store.UpsertRelationship(ctx, rel)
				})
			}
		}
		for i, err := range utils.SemaphoreGather(ctx, 0, fns...) {
			if err != nil {
				w.logger.Error("relationship write failed",
					"relationship_id", group[i].ID, "type", group[i].Type, "error", err)
				result.Failed = append(result.Failed, FailedRecord{
					RecordID: group[i].ID, RecordKind: types.RecordKindRelationship, Err: err,
				})
				continue
			}
			result.RelationshipsWritten++
		}
	}

	for _, prov := range batch.Provenance {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := w.withRetry(ctx, func() error {
			return w.store.RecordProvenance(ctx, prov)
		}); err != nil {
			// provenance loss degrades audit, not graph consistency
			w.logger.Warn("provenance write failed",
				"record_id", prov.RecordID, "error", err)
			continue
		}
		result.ProvenanceWritten++
	}

	return result, nil
}

func (w *Writer) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := w.baseDelay
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == w.maxAttempts {
			break
		}
		jittered := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}
		delay *= 2
	}
	return fmt.Errorf("after %d attempts: %w", w.maxAttempts, lastErr)
}
