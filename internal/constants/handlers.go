package constants

import "time"

// Event stream constants
const (
	// EventChannelBuffer is the buffer size of a session listener channel
	EventChannelBuffer = 100

	// StreamKeepalive is how often an idle SSE stream writes a comment line
	StreamKeepalive = 15 * time.Second
)

// File upload constants
const (
	// MaxUploadSize is the maximum photo or frame upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// MaxSaveBatch is the maximum number of attendance records accepted by a single save request
	MaxSaveBatch = 5000
)
