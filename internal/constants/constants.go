// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultMatchThreshold is the default maximum Euclidean distance between an observed
	// face embedding and a reference embedding for the face to be recognized.
	// Lower values = stricter matching
	DefaultMatchThreshold = 0.5

	// DuplicateSearchK is the number of reference candidates fetched from the HNSW graph
	// when checking a new enrollment against existing students.
	DuplicateSearchK = 5
)

// Recognition session constants
const (
	// DefaultCycleIntervalMs is the default polling period between detection cycles.
	DefaultCycleIntervalMs = 600

	// FrameBufferSize is the number of pushed frames kept for the next cycle.
	// Older frames are dropped when the buffer is full.
	FrameBufferSize = 1
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for enrollment
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) sent to the embedding server
	MaxImageSize = 1280
)

// Report cell markers
const (
	MarkerPresent   = "P"
	MarkerAbsent    = "A"
	MarkerHoliday   = "H"
	MarkerWeeklyOff = "S"

	// NotAvailable is rendered where a percentage or method is undefined.
	NotAvailable = "N/A"
)

// Date layouts
const (
	// DateLayout is the calendar date format used for records, holidays and query parameters.
	DateLayout = "2006-01-02"

	// MonthLayout selects a month in report requests.
	MonthLayout = "2006-01"
)
