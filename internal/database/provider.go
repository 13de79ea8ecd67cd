package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ReferenceIndexer is implemented by backends that keep an in-memory HNSW graph
// of reference embeddings for duplicate-enrollment checks.
type ReferenceIndexer interface {
	// RebuildReferenceIndex rebuilds the graph from storage
	RebuildReferenceIndex(ctx context.Context) error
	// ReferenceIndex returns the current graph, nil if not built
	ReferenceIndex() *ReferenceIndex
	// SaveReferenceIndex saves the current graph to disk (if path configured)
	SaveReferenceIndex() error
}

var (
	backendMu          sync.RWMutex
	backendName        string
	backendStore       func() Store
	backendIndexer     ReferenceIndexer
	backendInitialized bool
)

// errNotInitialized is returned by the getters before a backend has been registered.
var errNotInitialized = errors.New("storage backend not initialized: run with DATABASE_URL or SQLITE_PATH configured")

// RegisterBackend registers the active storage backend.
// This is called by cmd after opening postgres, sqlite or mysql to avoid import cycles.
func RegisterBackend(name string, store func() Store) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = name
	backendStore = store
	backendInitialized = true
}

// RegisterReferenceIndexer registers the HNSW rebuilder of the active backend.
func RegisterReferenceIndexer(indexer ReferenceIndexer) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendIndexer = indexer
}

// GetReferenceIndexer returns the registered reference indexer, or nil if not registered.
func GetReferenceIndexer() ReferenceIndexer {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendIndexer
}

// ResetBackend clears the registry. Used by tests and on shutdown.
func ResetBackend() {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = ""
	backendStore = nil
	backendIndexer = nil
	backendInitialized = false
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendInitialized
}

// BackendName returns the name of the registered backend ("postgres", "sqlite", "mysql").
func BackendName() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName
}

// GetStore returns the full Store of the registered backend
func GetStore(ctx context.Context) (Store, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if !backendInitialized {
		return nil, errNotInitialized
	}
	if backendStore == nil {
		return nil, fmt.Errorf("%s store not registered", backendName)
	}
	return backendStore(), nil
}

// GetAttendanceWriter returns an AttendanceWriter from the registered backend
func GetAttendanceWriter(ctx context.Context) (AttendanceWriter, error) {
	return GetStore(ctx)
}

// GetStudentReader returns a StudentReader from the registered backend
func GetStudentReader(ctx context.Context) (StudentReader, error) {
	return GetStore(ctx)
}

// GetHolidayWriter returns a HolidayWriter from the registered backend
func GetHolidayWriter(ctx context.Context) (HolidayWriter, error) {
	return GetStore(ctx)
}
