// Package recognition runs camera recognition sessions. A session polls a frame source,
// matches detected faces against the class gallery and emits at most one face scan mark
// per student while it stays active. Marks are only emitted; saving them is the caller's job.
package recognition

import (
	"maps"
	"slices"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
)

// Phase is the camera state of a session.
type Phase int

const (
	Idle Phase = iota
	Active
)

func (p Phase) String() string {
	if p == Active {
		return "active"
	}
	return "idle"
}

// MarkEvent is emitted the first time a student is recognized during an activation.
type MarkEvent struct {
	StudentID  string                    `json:"student_id"`
	Name       string                    `json:"name"`
	Status     database.AttendanceStatus `json:"status"`
	Method     database.MarkMethod       `json:"method"`
	Confidence float64                   `json:"confidence"`
	Distance   float64                   `json:"distance"`
	At         time.Time                 `json:"at"`
}

// Observation describes one detected face of a cycle, for annotation.
type Observation struct {
	StudentID     string         `json:"student_id,omitempty"`
	Name          string         `json:"name,omitempty"`
	Distance      float64        `json:"distance"`
	BBox          facematch.BBox `json:"bbox"`
	AlreadyMarked bool           `json:"already_marked"`
}

// Known reports whether the face matched an enrolled student.
func (o Observation) Known() bool { return o.StudentID != "" }

// CycleResult is what one detection cycle produced.
type CycleResult struct {
	Events       []MarkEvent   `json:"events"`
	Observations []Observation `json:"observations"`
}

// Unknown counts the observations that matched nobody.
func (r CycleResult) Unknown() int {
	n := 0
	for _, o := range r.Observations {
		if !o.Known() {
			n++
		}
	}
	return n
}

// Params are the inputs of an activation.
type Params struct {
	ClassID   string
	Date      string
	Gallery   []facematch.Entry
	Names     map[string]string // student ID -> display name
	Present   map[string]bool   // students already marked Present on Date
	Threshold float64
}

// SessionState is an immutable snapshot of a session. Transitions return a new value and
// never modify the receiver, so a state handed to a reader stays valid.
type SessionState struct {
	phase      Phase
	classID    string
	date       string
	gallery    []facematch.Entry
	names      map[string]string
	recognized map[string]bool
	threshold  float64
	statusKey  string
	status     string
	err        error
}

// NewSessionState returns an Idle state.
func NewSessionState(msgs Messages) SessionState {
	return SessionState{phase: Idle, statusKey: StatusIdle, status: msgs.Idle}
}

func (s SessionState) Phase() Phase      { return s.phase }
func (s SessionState) ClassID() string   { return s.classID }
func (s SessionState) Date() string      { return s.date }
func (s SessionState) StatusKey() string { return s.statusKey }
func (s SessionState) Status() string    { return s.status }

// Err returns the error that ended the last activation, if any.
func (s SessionState) Err() error { return s.err }

// GallerySize returns the number of reference entries in the snapshot.
func (s SessionState) GallerySize() int { return len(s.gallery) }

// Inert reports an active session that has nobody to recognize.
func (s SessionState) Inert() bool { return s.phase == Active && len(s.gallery) == 0 }

// Recognized reports whether studentID is in the dedup set.
func (s SessionState) Recognized(studentID string) bool { return s.recognized[studentID] }

// RecognizedIDs returns the dedup set, sorted.
func (s SessionState) RecognizedIDs() []string {
	return slices.Sorted(maps.Keys(s.recognized))
}

// Name returns the display name of a student in the gallery snapshot.
func (s SessionState) Name(studentID string) string {
	if n, ok := s.names[studentID]; ok {
		return n
	}
	return studentID
}

func (s SessionState) withStatus(key, text string) SessionState {
	s.statusKey = key
	s.status = text
	return s
}

// Activate snapshots the gallery and seeds the dedup set with the students already present,
// so earlier marks of the day are not announced again. An empty gallery yields an active
// but inert state.
func Activate(prev SessionState, p Params, msgs Messages) SessionState {
	next := SessionState{
		phase:      Active,
		classID:    p.ClassID,
		date:       p.Date,
		gallery:    slices.Clone(p.Gallery),
		names:      maps.Clone(p.Names),
		recognized: make(map[string]bool, len(p.Present)),
		threshold:  p.Threshold,
	}
	for id, ok := range p.Present {
		if ok {
			next.recognized[id] = true
		}
	}
	if len(next.gallery) == 0 {
		return next.withStatus(StatusNoFaces, msgs.NoFaces)
	}
	return next.withStatus(StatusDetecting, msgs.Detecting)
}

// Cycle matches the detections of one frame. Each student not yet in the dedup set yields
// one MarkEvent and joins the set; repeated sightings are only reported as observations.
// Idle and inert states are returned unchanged.
func Cycle(prev SessionState, detections []Detection, msgs Messages, now time.Time) (SessionState, CycleResult) {
	var result CycleResult
	if prev.phase != Active || len(prev.gallery) == 0 || len(detections) == 0 {
		return prev, result
	}

	next := prev
	cloned := false
	for _, d := range detections {
		m := facematch.Match(d.Embedding, prev.gallery, prev.threshold)
		obs := Observation{Distance: m.Distance, BBox: d.BBox}
		if !m.Known() {
			result.Observations = append(result.Observations, obs)
			continue
		}

		obs.StudentID = m.Label
		obs.Name = prev.Name(m.Label)
		obs.AlreadyMarked = next.recognized[m.Label]
		result.Observations = append(result.Observations, obs)
		if obs.AlreadyMarked {
			continue
		}

		if !cloned {
			next.recognized = maps.Clone(prev.recognized)
			cloned = true
		}
		next.recognized[m.Label] = true
		result.Events = append(result.Events, MarkEvent{
			StudentID:  m.Label,
			Name:       obs.Name,
			Status:     database.StatusPresent,
			Method:     database.MethodFaceScan,
			Confidence: m.Confidence(),
			Distance:   m.Distance,
			At:         now,
		})
		next = next.withStatus(StatusRecognized, msgs.text(StatusRecognized, obs.Name))
	}
	return next, result
}

// Deactivate discards the gallery snapshot and the dedup set.
func Deactivate(prev SessionState, msgs Messages) SessionState {
	return NewSessionState(msgs)
}

// Fail returns to Idle carrying err and the status of statusKey.
func Fail(prev SessionState, statusKey string, err error, msgs Messages) SessionState {
	next := NewSessionState(msgs).withStatus(statusKey, msgs.text(statusKey, ""))
	next.err = err
	return next
}
