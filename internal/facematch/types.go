// Package facematch matches observed face embeddings against a labeled gallery.
// Everything here is pure and shared between the recognition session, the CLI and web handlers.
package facematch

// Unknown is the label of a MatchResult that did not resolve to a gallery entry.
const Unknown = ""

// Entry is one labeled reference embedding. A label may appear in several entries.
type Entry struct {
	Label     string
	Embedding []float32
}

// MatchResult is the outcome of matching one observed embedding.
type MatchResult struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// Known reports whether the match resolved to a label.
func (r MatchResult) Known() bool {
	return r.Label != Unknown
}

// Confidence maps the distance into (0, 1]; an exact match is 1.
func (r MatchResult) Confidence() float64 {
	if !r.Known() {
		return 0
	}
	return 1 / (1 + r.Distance)
}
