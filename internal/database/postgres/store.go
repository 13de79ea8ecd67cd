package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// Store implements database.Store on PostgreSQL with an optional in-memory HNSW graph
// of reference embeddings.
type Store struct {
	pool *Pool

	index     *database.ReferenceIndex
	indexPath string // Path to persist the HNSW graph (optional)
	indexMu   sync.RWMutex
}

// NewStore creates a store on an open pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pool.
func (s *Store) Pool() *Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func newID() string {
	return uuid.NewString()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// SetReferenceIndexPath sets where the HNSW graph is persisted.
func (s *Store) SetReferenceIndexPath(path string) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.indexPath = path
}

// RebuildReferenceIndex rebuilds the HNSW graph from every stored reference embedding.
func (s *Store) RebuildReferenceIndex(ctx context.Context) error {
	refs, err := s.ListReferenceEmbeddings(ctx, "")
	if err != nil {
		return fmt.Errorf("load reference embeddings: %w", err)
	}

	idx := database.NewReferenceIndex()
	idx.Build(refs)

	s.indexMu.Lock()
	if s.indexPath != "" {
		idx.SetPath(s.indexPath)
	}
	s.index = idx
	s.indexMu.Unlock()
	return nil
}

// ReferenceIndex returns the current graph, nil if not built.
func (s *Store) ReferenceIndex() *database.ReferenceIndex {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	return s.index
}

// SaveReferenceIndex saves the graph to disk if a path is configured.
func (s *Store) SaveReferenceIndex() error {
	idx := s.ReferenceIndex()
	if idx == nil {
		return nil
	}
	if err := idx.Save(); err != nil {
		return fmt.Errorf("save reference index: %w", err)
	}
	return nil
}

var (
	_ database.Store            = (*Store)(nil)
	_ database.ReferenceIndexer = (*Store)(nil)
)
