package facematch

import (
	"math"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

// Match returns the label of the gallery entry nearest to observed when that distance is
// within threshold, otherwise an Unknown result carrying the nearest distance seen.
//
// Each label is scored by its best entry. Ties resolve to the label seen first in gallery order.
// An empty gallery always yields Unknown.
func Match(observed []float32, gallery []Entry, threshold float64) MatchResult {
	best := MatchResult{Label: Unknown, Distance: math.Inf(1)}
	bestLabel := Unknown

	for i := range gallery {
		d := database.EuclideanDistance(observed, gallery[i].Embedding)
		if d < best.Distance {
			best.Distance = d
			bestLabel = gallery[i].Label
		}
	}

	if bestLabel != Unknown && best.Distance <= threshold {
		best.Label = bestLabel
	}
	return best
}

// GalleryFromReferences converts stored reference embeddings into gallery entries
// labeled by student ID, skipping students without a reference.
func GalleryFromReferences(refs []database.ReferenceEmbedding) []Entry {
	gallery := make([]Entry, 0, len(refs))
	for _, r := range refs {
		if len(r.Embedding) == 0 {
			continue
		}
		gallery = append(gallery, Entry{Label: r.StudentID, Embedding: r.Embedding})
	}
	return gallery
}
