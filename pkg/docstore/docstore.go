// Package docstore tracks ingested documents by content hash. It is the
// precondition gate for reprocessing: an unchanged document is skipped
// before any chunking or extraction happens.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/akgraph/pkg/types"
)

// ErrNotFound is returned when no document matches the key.
var ErrNotFound = errors.New("docstore: document not found")

// Store persists documents keyed by id and content hash.
type Store interface {
	// GetByHash finds the document whose content hash matches.
	GetByHash(ctx context.Context, hash string) (*types.Document, error)
	// Get finds a document by id.
	Get(ctx context.Context, id string) (*types.Document, error)
	// Put stores the document under both its id and its content hash. A
	// re-put of a changed document supersedes the id entry; the old hash
	// entry simply stops matching anything.
	Put(ctx context.Context, doc *types.Document) error
	// Close releases underlying resources.
	Close() error
}

const (
	idPrefix   = "doc/"
	hashPrefix = "hash/"
)

// Badger is the persistent Store implementation.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates a document store at dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store at %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func (s *Badger) Close() error { return s.db.Close() }

func (s *Badger) Put(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(idPrefix+doc.ID), encoded); err != nil {
			return err
		}
		return txn.Set([]byte(hashPrefix+doc.ContentHash()), []byte(doc.ID))
	})
}

func (s *Badger) Get(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("document lookup: %w", err)
	}
	return &doc, nil
}

func (s *Badger) GetByHash(ctx context.Context, hash string) (*types.Document, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(hashPrefix + hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("hash lookup: %w", err)
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// the id entry may have been superseded by newer content
	if doc.ContentHash() != hash {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Memory is the in-memory Store implementation for tests and dry runs.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*types.Document
	byHash map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]*types.Document),
		byHash: make(map[string]string),
	}
}

func (s *Memory) Close() error { return nil }

func (s *Memory) Put(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *doc
	s.byID[doc.ID] = &copied
	s.byHash[doc.ContentHash()] = doc.ID
	return nil
}

func (s *Memory) Get(ctx context.Context, id string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *Memory) GetByHash(ctx context.Context, hash string) (*types.Document, error) {
	s.mu.RLock()
	id, ok := s.byHash[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ContentHash() != hash {
		return nil, ErrNotFound
	}
	return doc, nil
}
