package facematch

// BBox is a face bounding box [x1, y1, x2, y2] in pixels, as reported by the embedding server.
type BBox []float64

// Valid reports whether the box has four coordinates and a positive area.
func (b BBox) Valid() bool {
	return len(b) == 4 && b[2] > b[0] && b[3] > b[1]
}

// Area returns the box area, 0 for invalid boxes.
func (b BBox) Area() float64 {
	if !b.Valid() {
		return 0
	}
	return (b[2] - b[0]) * (b[3] - b[1])
}

// LargestFace returns the index of the box with the largest area, or -1 when none is valid.
// Enrollment photos use it to pick the subject when bystanders are in frame.
func LargestFace(boxes []BBox) int {
	best := -1
	bestArea := 0.0
	for i, b := range boxes {
		if a := b.Area(); a > bestArea {
			best = i
			bestArea = a
		}
	}
	return best
}
