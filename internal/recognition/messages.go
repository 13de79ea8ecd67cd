package recognition

import (
	"fmt"
	"strings"
)

// Status keys, also used to look up configured message text.
const (
	StatusIdle           = "idle"
	StatusNoFaces        = "no_faces"
	StatusDetecting      = "detecting"
	StatusRecognized     = "recognized"
	StatusCameraDenied   = "camera_denied"
	StatusProviderFailed = "provider_failed"
)

// Messages holds the user-facing text of each status.
type Messages struct {
	Idle           string
	NoFaces        string
	Detecting      string
	Recognized     string // may contain %s for the student name
	CameraDenied   string
	ProviderFailed string
}

// DefaultMessages returns the built-in English messages.
func DefaultMessages() Messages {
	return Messages{
		Idle:           "Camera is off.",
		NoFaces:        "No student faces registered for recognition.",
		Detecting:      "Detecting faces...",
		Recognized:     "✓ Recognized: %s",
		CameraDenied:   "Camera access denied. Please check permissions.",
		ProviderFailed: "Face recognition models failed to load.",
	}
}

// MessagesFrom builds Messages by looking up each status key, keeping the default for
// keys the lookup returns unchanged or empty.
func MessagesFrom(lookup func(key string) string) Messages {
	m := DefaultMessages()
	pick := func(key string, dst *string) {
		if v := lookup(key); v != "" && v != key {
			*dst = v
		}
	}
	pick(StatusIdle, &m.Idle)
	pick(StatusNoFaces, &m.NoFaces)
	pick(StatusDetecting, &m.Detecting)
	pick(StatusRecognized, &m.Recognized)
	pick(StatusCameraDenied, &m.CameraDenied)
	pick(StatusProviderFailed, &m.ProviderFailed)
	return m
}

func (m Messages) text(key, name string) string {
	switch key {
	case StatusIdle:
		return m.Idle
	case StatusNoFaces:
		return m.NoFaces
	case StatusDetecting:
		return m.Detecting
	case StatusRecognized:
		if strings.Contains(m.Recognized, "%s") {
			return fmt.Sprintf(m.Recognized, name)
		}
		return m.Recognized + " " + name
	case StatusCameraDenied:
		return m.CameraDenied
	case StatusProviderFailed:
		return m.ProviderFailed
	}
	return key
}
