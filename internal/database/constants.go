package database

import "errors"

// ErrDuplicateClass is returned when a class name already exists in the school.
var ErrDuplicateClass = errors.New("a class with this name already exists in the school")

// ErrDuplicateUsername is returned when another user already has the username.
var ErrDuplicateUsername = errors.New("username is already taken")

// HNSW index parameters for 128-512 dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 64
)
