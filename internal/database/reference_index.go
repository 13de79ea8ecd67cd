package database

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// Neighbor is a reference embedding found near a query.
type Neighbor struct {
	StudentID string
	Distance  float64
}

// ReferenceIndex wraps an HNSW graph of student reference embeddings keyed by student ID.
// It answers "which enrolled students look like this face" without scanning every school.
// Recognition itself always uses the exact matcher; the graph is approximate.
type ReferenceIndex struct {
	graph *hnsw.Graph[string]
	mu    sync.RWMutex
	path  string // Path to save/load index
}

// NewReferenceIndex creates a new empty index.
func NewReferenceIndex() *ReferenceIndex {
	return &ReferenceIndex{}
}

func newReferenceGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with refs.
func (x *ReferenceIndex) Build(refs []ReferenceEmbedding) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(refs) == 0 {
		x.graph = nil
		return
	}

	g := newReferenceGraph()
	for i := range refs {
		if len(refs[i].Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(refs[i].StudentID, refs[i].Embedding))
	}
	x.graph = g
}

// Add inserts or replaces the reference of one student.
func (x *ReferenceIndex) Add(ref ReferenceEmbedding) {
	if len(ref.Embedding) == 0 {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.deleteLocked(ref.StudentID)
	if x.graph == nil {
		x.graph = newReferenceGraph()
	}
	x.graph.Add(hnsw.MakeNode(ref.StudentID, ref.Embedding))
}

// deleteLocked removes studentID from the graph. The caller holds the write lock.
func (x *ReferenceIndex) deleteLocked(studentID string) {
	if x.graph == nil {
		return
	}
	if _, ok := x.graph.Lookup(studentID); !ok {
		return
	}
	if x.graph.Len() == 1 {
		// Start over instead of deleting the entry point of a single-node graph.
		x.graph = newReferenceGraph()
		return
	}
	x.graph.Delete(studentID)
}

// Remove drops a student from the index.
func (x *ReferenceIndex) Remove(studentID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.deleteLocked(studentID)
}

// Search finds up to k students nearest to query, closest first.
// Distances are recomputed exactly from the stored vectors.
func (x *ReferenceIndex) Search(query []float32, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil, errors.New("index not initialized")
	}
	if x.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	nodes := x.graph.Search(query, k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Neighbor{
			StudentID: n.Key,
			Distance:  EuclideanDistance(query, n.Value),
		})
	}
	return out, nil
}

// Within returns the neighbors of query closer than maxDistance, excluding excludeID.
func (x *ReferenceIndex) Within(query []float32, k int, maxDistance float64, excludeID string) ([]Neighbor, error) {
	neighbors, err := x.Search(query, k+1)
	if err != nil {
		return nil, err
	}
	var out []Neighbor
	for _, n := range neighbors {
		if n.StudentID == excludeID || n.Distance > maxDistance {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Len returns the number of indexed students.
func (x *ReferenceIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.graph == nil {
		return 0
	}
	return x.graph.Len()
}

// SetPath sets the path for saving the index.
func (x *ReferenceIndex) SetPath(path string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.path = path
}

// Save persists the index to disk.
func (x *ReferenceIndex) Save() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.path == "" {
		return nil // No path set
	}

	if x.graph == nil {
		// Remove existing file if index is empty (best-effort cleanup).
		_ = os.Remove(x.path)
		return nil
	}

	f, err := os.Create(x.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := x.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}
	return nil
}

// Load loads the index from disk. A missing file leaves the index empty.
func (x *ReferenceIndex) Load(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // No index file, will build from storage
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	x.graph = saved.Graph
	return nil
}
